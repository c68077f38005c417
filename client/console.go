package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/luma/sprt/protocol"
)

// FunctionPrompt asks the user which application to run
const FunctionPrompt = "Function> "

// Console runs a session interactively: the user types the first function,
// then the parameters for every step the server asks for.
type Console struct {
	in  *bufio.Scanner
	out io.Writer
	err io.Writer
}

func NewConsole(in io.Reader, out io.Writer, errOut io.Writer) *Console {
	return &Console{in: bufio.NewScanner(in), out: out, err: errOut}
}

// Run drives conn until the server ends the session or input runs out
func (c *Console) Run(ctx context.Context, conn *Conn) error {
	first, err := c.readTokens(FunctionPrompt, func(tokens []string) bool { return len(tokens) == 1 })
	if err != nil {
		return err
	}

	function, params := first[0], []string{}

	for {
		resp, err := conn.Send(ctx, function, params...)
		if err != nil {
			return err
		}

		if resp.Status() == protocol.StatusOK {
			fmt.Fprint(c.out, resp.Message())
		} else {
			fmt.Fprint(c.err, resp.Message())
		}

		if resp.Terminal() {
			fmt.Fprintln(c.out)
			return nil
		}

		function = resp.Function()

		if params, err = c.readTokens("", func([]string) bool { return true }); err != nil {
			return err
		}
	}
}

// readTokens reads lines until one holds only valid tokens that ok accepts
func (c *Console) readTokens(prompt string, ok func([]string) bool) ([]string, error) {
	for {
		fmt.Fprint(c.out, prompt)

		if !c.in.Scan() {
			if err := c.in.Err(); err != nil {
				return nil, err
			}

			return nil, io.EOF
		}

		tokens := strings.Fields(c.in.Text())
		if allTokens(tokens) && ok(tokens) {
			return tokens, nil
		}

		fmt.Fprintln(c.err, "Bad user input: expected letters and digits separated by spaces")
	}
}

func allTokens(tokens []string) bool {
	for _, tok := range tokens {
		if !protocol.IsToken(tok) {
			return false
		}
	}

	return true
}

// LoadCookies reads attributes kept by SaveCookies. A missing or empty file
// holds no attributes.
func LoadCookies(path string) (*protocol.Attributes, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(data) == 0) {
		return protocol.NewAttributes(), nil
	}

	if err != nil {
		return nil, err
	}

	attrs, err := protocol.DecodeAttributes(protocol.NewBytesReader(data))
	if err != nil {
		return nil, fmt.Errorf("bad cookie file %s: %w", path, err)
	}

	return attrs, nil
}

// SaveCookies writes attrs to path in the SPRT attribute encoding
func SaveCookies(path string, attrs *protocol.Attributes) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	return attrs.Encode(protocol.NewWriter(f))
}
