package commands

import (
	"FadNote/internal/cli/api"
	"FadNote/internal/cli/crypto"
	"FadNote/internal/config"
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
)

type readCmd struct{}

func (readCmd) Name() string        { return "read" }
func (readCmd) Description() string { return "Fetch, destroy and decrypt a note by its link" }
func (readCmd) Usage() string       { return "read <link>" }

func (readCmd) Run(ctx context.Context, _ *config.Config, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	server, id, key, err := api.ParseLink(args[0])
	if err != nil {
		return err
	}

	blob, err := api.FetchNote(ctx, server, id)
	if errors.Is(err, api.ErrNotFound) {
		fmt.Fprintf(Err, "%s note not found or already viewed\n", color.RedString("✗"))
		return err
	}
	if err != nil {
		return err
	}

	// заметка на сервере уже удалена: при ошибке расшифровки повторить чтение нельзя
	plain, err := crypto.Open(blob, key)
	if err != nil {
		return fmt.Errorf("%w (the note has been destroyed on the server)", err)
	}
	fmt.Fprintln(Out, string(plain))
	return nil
}

func init() { RegisterCmd(readCmd{}) }
