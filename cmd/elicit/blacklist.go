package main

import (
	"context"
	"fmt"
)

// BlacklistCmd groups blacklist commands.
type BlacklistCmd struct {
	Add    BlacklistAddCmd    `cmd:"" help:"Hide projects"`
	Remove BlacklistRemoveCmd `cmd:"" help:"Unhide projects"`
	List   BlacklistListCmd   `cmd:"" help:"List hidden projects"`
}

// BlacklistAddCmd implements 'blacklist add'.
type BlacklistAddCmd struct {
	Projects []string `arg:"" help:"Project ids"`
}

func (c *BlacklistAddCmd) Run(root *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, root, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	for _, id := range c.Projects {
		if err := a.store.Add(ctx, id); err != nil {
			return err
		}
	}
	fmt.Printf("Blacklisted %d project(s)\n", len(c.Projects))
	return nil
}

// BlacklistRemoveCmd implements 'blacklist remove'.
type BlacklistRemoveCmd struct {
	Projects []string `arg:"" help:"Project ids"`
}

func (c *BlacklistRemoveCmd) Run(root *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, root, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	for _, id := range c.Projects {
		if err := a.store.Remove(ctx, id); err != nil {
			return err
		}
	}
	fmt.Printf("Removed %d project(s) from the blacklist\n", len(c.Projects))
	return nil
}

// BlacklistListCmd implements 'blacklist list'.
type BlacklistListCmd struct{}

func (c *BlacklistListCmd) Run(root *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, root, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	ids, err := a.store.List(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("Blacklist is empty.")
		return nil
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}
