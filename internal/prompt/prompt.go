//go:build !js

// Package prompt implements fsaccess.Chooser with terminal forms.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/kittclouds/garagebook/pkg/fsaccess"
)

// Chooser asks for paths and permission on the terminal.
type Chooser struct {
	// Dir is where suggested file names are placed.
	Dir string
}

// New returns a Chooser that suggests files in dir.
func New(dir string) *Chooser {
	return &Chooser{Dir: dir}
}

func (c *Chooser) ChooseSavePath(ctx context.Context, opts fsaccess.PickerOptions) (string, error) {
	path := c.suggest(opts.SuggestedName)
	input := huh.NewInput().
		Title("Save data file as").
		Description(describeTypes(opts)).
		Value(&path).
		Validate(validateSavePath)
	if err := run(ctx, input); err != nil {
		return "", err
	}
	return strings.TrimSpace(path), nil
}

func (c *Chooser) ChooseOpenPath(ctx context.Context, opts fsaccess.PickerOptions) (string, error) {
	var path string
	input := huh.NewInput().
		Title("Open existing data file").
		Description(describeTypes(opts)).
		Placeholder(c.suggest("")).
		Value(&path).
		Validate(validateOpenPath)
	if err := run(ctx, input); err != nil {
		return "", err
	}
	return strings.TrimSpace(path), nil
}

func (c *Chooser) ConfirmPermission(ctx context.Context, name string) (bool, error) {
	var ok bool
	confirm := huh.NewConfirm().
		Title(fmt.Sprintf("Allow garagebook to edit %s?", name)).
		Affirmative("Allow").
		Negative("Don't allow").
		Value(&ok)
	if err := run(ctx, confirm); err != nil {
		return false, err
	}
	return ok, nil
}

func (c *Chooser) suggest(name string) string {
	if c.Dir == "" {
		return name
	}
	return filepath.Join(c.Dir, name)
}

func run(ctx context.Context, field huh.Field) error {
	err := huh.NewForm(huh.NewGroup(field)).RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return fsaccess.ErrAborted
	}
	return err
}

func describeTypes(opts fsaccess.PickerOptions) string {
	var parts []string
	for _, t := range opts.Types {
		var exts []string
		for _, e := range t.Accept {
			exts = append(exts, e...)
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", t.Description, strings.Join(exts, ", ")))
	}
	return strings.Join(parts, "; ")
}

func validateSavePath(p string) error {
	p = strings.TrimSpace(p)
	if p == "" {
		return errors.New("enter a file name")
	}
	if info, err := os.Stat(p); err == nil && info.IsDir() {
		return errors.New("that is a directory")
	}
	return nil
}

func validateOpenPath(p string) error {
	p = strings.TrimSpace(p)
	if p == "" {
		return errors.New("enter a file name")
	}
	info, err := os.Stat(p)
	if err != nil {
		return errors.New("no such file")
	}
	if info.IsDir() {
		return errors.New("that is a directory")
	}
	return nil
}
