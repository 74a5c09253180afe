package config

import (
	"errors"
	"testing"

	"github.com/lumen-edu/jarvis/pkg/provider/llm"
	llmmock "github.com/lumen-edu/jarvis/pkg/provider/llm/mock"
	"github.com/lumen-edu/jarvis/pkg/provider/stt"
	sttmock "github.com/lumen-edu/jarvis/pkg/provider/stt/mock"
	"github.com/lumen-edu/jarvis/pkg/provider/tts"
	ttsmock "github.com/lumen-edu/jarvis/pkg/provider/tts/mock"
)

func TestRegistry_CreateUsesFactory(t *testing.T) {
	r := NewRegistry()
	r.RegisterLLM("mock", func(e ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{}, nil
	})
	r.RegisterSTT("mock", func(e ProviderEntry) (stt.Provider, error) {
		return &sttmock.Provider{}, nil
	})
	r.RegisterTTS("mock", func(e ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{}, nil
	})

	if p, err := r.CreateLLM(ProviderEntry{Name: "mock"}); err != nil || p == nil {
		t.Errorf("CreateLLM = (%v, %v), want provider", p, err)
	}
	if p, err := r.CreateSTT(ProviderEntry{Name: "mock"}); err != nil || p == nil {
		t.Errorf("CreateSTT = (%v, %v), want provider", p, err)
	}
	if p, err := r.CreateTTS(ProviderEntry{Name: "mock"}); err != nil || p == nil {
		t.Errorf("CreateTTS = (%v, %v), want provider", p, err)
	}
}

func TestRegistry_UnregisteredName(t *testing.T) {
	r := NewRegistry()
	_, err := r.CreateLLM(ProviderEntry{Name: "nope"})
	if !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateLLM error = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_FactoryReceivesEntry(t *testing.T) {
	r := NewRegistry()
	var got ProviderEntry
	r.RegisterLLM("mock", func(e ProviderEntry) (llm.Provider, error) {
		got = e
		return &llmmock.Provider{}, nil
	})

	entry := ProviderEntry{Name: "mock", APIKey: "sk-test", Model: "gpt-4o-mini"}
	if _, err := r.CreateLLM(entry); err != nil {
		t.Fatalf("CreateLLM: %v", err)
	}
	if got.APIKey != "sk-test" || got.Model != "gpt-4o-mini" {
		t.Errorf("factory received %+v, want %+v", got, entry)
	}
}
