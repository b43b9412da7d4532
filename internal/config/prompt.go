package config

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Prompter 交互式获取缺失的参数
type Prompter interface {
	Prompt(question string) (string, error)
}

// PrompterFunc 让普通函数实现 Prompter
type PrompterFunc func(question string) (string, error)

func (f PrompterFunc) Prompt(question string) (string, error) {
	return f(question)
}

// StdinPrompter 从终端读取一行输入
type StdinPrompter struct {
	reader *bufio.Reader
	out    io.Writer
}

func NewStdinPrompter(in io.Reader, out io.Writer) *StdinPrompter {
	return &StdinPrompter{reader: bufio.NewReader(in), out: out}
}

func (p *StdinPrompter) Prompt(question string) (string, error) {
	fmt.Fprint(p.out, question)
	line, err := p.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
