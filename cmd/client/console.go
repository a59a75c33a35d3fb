package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/qwb00/ChatApp/internal/client"
	"github.com/qwb00/ChatApp/internal/domain"
)

var errInputClosed = errors.New("input closed")

// console reads stdin on one goroutine and shares the lines between the
// prompts and the chat session.
type console struct {
	lines chan string
	out   io.Writer
	mu    sync.Mutex
}

func newConsole(in io.Reader, out io.Writer) *console {
	c := &console{lines: make(chan string), out: out}
	go func() {
		defer close(c.lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			c.lines <- sc.Text()
		}
	}()
	return c
}

func (c *console) readLine() (string, error) {
	line, ok := <-c.lines
	if !ok {
		return "", errInputClosed
	}
	return line, nil
}

func (c *console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

func (c *console) Render(msg domain.Message) {
	c.println(client.Format(msg))
}

func (c *console) Action(string) (client.Action, error) {
	for {
		line, err := c.readLine()
		if err != nil {
			return 0, err
		}
		switch strings.TrimSpace(line) {
		case "1":
			return client.ActionCreate, nil
		case "2":
			return client.ActionJoin, nil
		}
		c.println("Invalid option. Please enter 1 or 2:")
	}
}

func (c *console) Port(string) (int, error) {
	for {
		line, err := c.readLine()
		if err != nil {
			return 0, err
		}
		port, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && port >= 0 && port <= 65535 {
			return port, nil
		}
		c.println("Invalid port number. Please enter a valid port number:")
	}
}

func (c *console) Name(string) (string, error) {
	return c.readLine()
}
