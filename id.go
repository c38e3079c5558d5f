package main

import (
	"crypto/rand"
	"fmt"
)

const (
	convIDShort  = 7
	convIDMinLen = 4
)

func newConversationID() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("%x", b)
}

func shortID(id string) string {
	if len(id) < convIDShort {
		return id
	}
	return id[:convIDShort]
}
