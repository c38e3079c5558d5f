package main

import (
	"errors"
	"os"

	"github.com/charmbracelet/relay/internal/cache"
	"github.com/charmbracelet/relay/internal/proto"
)

// convoStore keeps saved conversations: the index lives in the database and
// the messages in the conversation cache, both keyed by the conversation id.
type convoStore struct {
	db    *convoDB
	cache *cache.Conversations
}

func openStore(cfg Config) (*convoStore, error) {
	db, err := dbForConfig(cfg)
	if err != nil {
		return nil, relayError{err, "Could not open database."}
	}
	convos, err := cache.NewConversations(cfg.CachePath)
	if err != nil {
		_ = db.Close()
		return nil, relayError{err, "Could not open the conversation cache."}
	}
	return &convoStore{db: db, cache: convos}, nil
}

func (s *convoStore) Close() error {
	return s.db.Close()
}

// find looks a conversation up by id prefix or title. An empty input finds
// the most recently saved one.
func (s *convoStore) find(in string) (*Conversation, error) {
	if in == "" {
		convo, err := s.db.FindHEAD()
		if err != nil {
			return nil, relayError{err, "There are no saved conversations."}
		}
		return convo, nil
	}
	convo, err := s.db.Find(in)
	if err != nil {
		return nil, relayError{err, "Could not find the conversation."}
	}
	return convo, nil
}

func (s *convoStore) load(convo *Conversation) ([]proto.Message, error) {
	messages, err := s.cache.Read(convo.ID)
	if err != nil {
		return nil, relayError{err, "Could not read the conversation."}
	}
	return messages, nil
}

func (s *convoStore) save(id, title, model string, messages []proto.Message) error {
	if title == "" {
		title = firstLine(lastPrompt(messages))
	}
	if err := s.cache.Write(id, messages); err != nil {
		return relayError{err, "Could not write the conversation."}
	}
	if err := s.db.Save(id, title, model); err != nil {
		_ = s.cache.Delete(id)
		return relayError{err, "Could not save the conversation."}
	}
	return nil
}

func (s *convoStore) remove(convo *Conversation) error {
	if err := s.cache.Delete(convo.ID); err != nil && !errors.Is(err, os.ErrNotExist) {
		return relayError{err, "Could not delete the conversation."}
	}
	if err := s.db.Delete(convo.ID); err != nil {
		return relayError{err, "Could not delete the conversation."}
	}
	return nil
}

// resolve decides which conversation the request continues and where the
// result is written to.
//
// Continuing keeps writing to the same conversation unless a new title is
// given, in which case the result is saved as a new one. Continuing from an
// unknown title starts a new conversation under that title.
func (s *convoStore) resolve(cfg *Config) error {
	cfg.cacheWriteToID = newConversationID()
	cfg.cacheWriteToTitle = cfg.Title

	if !cfg.ContinueLast && cfg.Continue == "" {
		return nil
	}

	in := cfg.Continue
	if cfg.ContinueLast {
		in = ""
	}
	convo, err := s.find(in)
	if errors.Is(err, errNoMatches) && cfg.Title == "" {
		cfg.cacheWriteToTitle = in
		return nil
	}
	if err != nil {
		return err
	}

	cfg.cacheReadFromID = convo.ID
	if cfg.Title == "" {
		cfg.cacheWriteToID = convo.ID
		cfg.cacheWriteToTitle = convo.Title
	}
	return nil
}

