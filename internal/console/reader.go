package console

import (
	"errors"
	"io"

	"github.com/chzyer/readline"
)

// ErrInterrupt is returned by a LineReader when the operator presses Ctrl-C.
var ErrInterrupt = errors.New("interrupt")

// LineReader is the interactive input of a session. Readline returns
// ErrInterrupt on Ctrl-C and io.EOF when input ends.
type LineReader interface {
	Readline() (string, error)
	// AddHistory makes line available to up/down arrow recall.
	AddHistory(line string)
	Close() error
}

type readlineReader struct {
	rl *readline.Instance
}

// NewReadline returns a LineReader backed by a terminal line editor. Recall
// is kept in memory only; persisting it is the session's job.
func NewReadline(prompt string, stdout, stderr io.Writer) (LineReader, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 prompt,
		HistoryLimit:           1000,
		DisableAutoSaveHistory: true,
		InterruptPrompt:        "^C",
		EOFPrompt:              "exit",
		Stdout:                 stdout,
		Stderr:                 stderr,
	})
	if err != nil {
		return nil, err
	}
	return &readlineReader{rl: rl}, nil
}

func (r *readlineReader) Readline() (string, error) {
	line, err := r.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return line, ErrInterrupt
	}
	return line, err
}

func (r *readlineReader) AddHistory(line string) {
	_ = r.rl.SaveHistory(line)
}

func (r *readlineReader) Close() error {
	return r.rl.Close()
}
