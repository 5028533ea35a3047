package commands

import (
	"FadNote/internal/cli/api"
	"FadNote/internal/cli/crypto"
	"FadNote/internal/config"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
)

// maxNoteBytes - предел и для открытого текста, и для зашифрованного конверта.
const maxNoteBytes = 1 << 20

type sendCmd struct{}

func (sendCmd) Name() string        { return "send" }
func (sendCmd) Description() string { return "Encrypt text (args or stdin) and print a one-time link" }
func (sendCmd) Usage() string       { return "send [text...]" }

func (sendCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	content, err := readContent(args)
	if err != nil {
		return err
	}
	if content == "" {
		return errors.New("content is empty")
	}
	if len(content) > maxNoteBytes {
		return errors.New("content exceeds 1MB limit")
	}

	blob, key, err := crypto.Seal([]byte(content), "")
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	if len(blob) > maxNoteBytes {
		return errors.New("encrypted note exceeds 1MB limit")
	}

	res, err := api.PostNote(ctx, cfg.ServerURL, blob, cfg.NoteTTLSeconds)
	if err != nil {
		return err
	}

	fmt.Fprintln(Out, api.BuildLink(cfg.ServerURL, res.ID, key))
	fmt.Fprintf(Err, "%s one-time link, expires in %s\n",
		color.GreenString("✓"), color.YellowString((time.Duration(res.ExpiresIn) * time.Second).String()))
	return nil
}

// readContent берёт текст из аргументов или, если их нет, из stdin.
func readContent(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	b, err := io.ReadAll(io.LimitReader(Stdin, maxNoteBytes+1))
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func init() { RegisterCmd(sendCmd{}) }
