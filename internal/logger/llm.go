package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
)

// Separate channel for raw provider traffic. Payloads can be huge
// (base64 screenshots), so they never go to the main log; enable the
// dump explicitly when debugging a provider.

var (
	llmMu          sync.Mutex
	llmLog         *log.Logger
	llmDumpPayload bool
)

func SetLLMWriter(w io.Writer) {
	llmMu.Lock()
	defer llmMu.Unlock()
	if w == nil {
		llmLog = nil
		return
	}
	llmLog = log.New(w, "", log.LstdFlags)
}

func EnableLLMPayloadDump(enabled bool) {
	llmMu.Lock()
	llmDumpPayload = enabled
	llmMu.Unlock()
}

type llmSection struct {
	title string
	body  string
}

func logLLM(kind, provider, purpose string, sections []llmSection) {
	llmMu.Lock()
	sink := llmLog
	dump := llmDumpPayload
	llmMu.Unlock()
	if sink == nil {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[LLM][%s][%s][%s]\n", kind, provider, purpose)
	for _, sec := range sections {
		if sec.title == "PAYLOAD" && !dump {
			continue
		}
		b.WriteString("--- ")
		b.WriteString(sec.title)
		b.WriteString(" ---\n")
		b.WriteString(sec.body)
		if !strings.HasSuffix(sec.body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	sink.Print(b.String())
}

// LogLLMRequest records an outbound provider call. Image payloads are
// logged as sizes only; the full body goes into PAYLOAD when the dump
// flag is on.
func LogLLMRequest(provider, purpose, systemPrompt, userPrompt string, imageCount int, payload string) {
	sections := []llmSection{
		{title: "SYSTEM", body: systemPrompt},
		{title: "USER", body: userPrompt},
	}
	if imageCount > 0 {
		sections = append(sections, llmSection{title: "IMAGES", body: fmt.Sprintf("%d attached", imageCount)})
	}
	if strings.TrimSpace(payload) != "" {
		sections = append(sections, llmSection{title: "PAYLOAD", body: payload})
	}
	logLLM("request", provider, purpose, sections)
}

func LogLLMResponse(provider, purpose, raw string) {
	logLLM("response", provider, purpose, []llmSection{{title: "RAW", body: raw}})
}
