package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	timeago "github.com/caarlos0/timea.go"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/relay/internal/proto"
)

func withStore(cfg Config, fn func(*convoStore) error) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck
	return fn(store)
}

func listConversations(store *convoStore) error {
	conversations, err := store.db.List()
	if err != nil {
		return relayError{err, "Couldn't list saves."}
	}
	if len(conversations) == 0 {
		fmt.Fprintln(os.Stderr, "No conversations found.")
		return nil
	}
	printList(os.Stdout, conversations, isOutputTTY())
	return nil
}

func printList(w io.Writer, conversations []Conversation, tty bool) {
	for _, c := range conversations {
		if !tty {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", shortID(c.ID), c.Title, timeago.Of(c.UpdatedAt))
			continue
		}
		_, _ = fmt.Fprintf(
			w,
			"%s%s\t%s\t%s\n",
			stdoutStyles().Bullet,
			stdoutStyles().SHA1.Render(shortID(c.ID)),
			c.Title,
			stdoutStyles().Timeago.Render(timeago.Of(c.UpdatedAt)),
		)
	}
}

func showConversation(store *convoStore, in string) error {
	convo, err := store.find(in)
	if err != nil {
		return err
	}
	messages, err := store.load(convo)
	if err != nil {
		return err
	}
	fmt.Print(proto.Conversation(messages).String())
	return nil
}

func deleteConversations(store *convoStore, ins []string) error {
	for _, in := range ins {
		convo, err := store.find(in)
		if err != nil {
			return err
		}
		if err := store.remove(convo); err != nil {
			return err
		}
		if !config.Quiet {
			fmt.Fprintln(os.Stderr, "Conversation deleted:", shortID(convo.ID))
		}
	}
	return nil
}

func listRoles(cfg Config) {
	for _, role := range slices.Sorted(maps.Keys(cfg.Roles)) {
		s := role
		if role == cfg.Role {
			s = role + stdoutStyles().Timeago.Render(" (default)")
		}
		fmt.Println(s)
	}
}

func listFunctions(ctx context.Context, cfg Config, logger *log.Logger) error {
	registry, err := buildRegistry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	for _, def := range registry.Definitions() {
		fmt.Print(stdoutStyles().Function.Render(def.Name))
		if def.Description != "" {
			fmt.Print(stdoutStyles().Comment.Render(" " + firstLine(def.Description)))
		}
		fmt.Println()
	}
	return nil
}
