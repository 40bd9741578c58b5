package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// LLMMeta tags one oracle exchange in the dump.
type LLMMeta struct {
	Trace    string
	Provider string
	Kind     string
	User     string
	GW       int
}

func (m LLMMeta) header(dir string) string {
	parts := []string{"[LLM]", "[" + dir + "]"}
	for _, tag := range []string{m.Provider, m.Kind, m.User} {
		if tag != "" {
			parts = append(parts, "["+tag+"]")
		}
	}
	if m.GW > 0 {
		parts = append(parts, fmt.Sprintf("[gw%d]", m.GW))
	}
	if m.Trace != "" {
		parts = append(parts, "trace="+m.Trace)
	}
	return strings.Join(parts, "")
}

var (
	llmMu   sync.Mutex
	llmSink io.Writer
)

// SetLLMWriter sets the sink for oracle traffic. nil disables the dump.
func SetLLMWriter(w io.Writer) {
	llmMu.Lock()
	llmSink = w
	llmMu.Unlock()
}

func writeLLM(header string, sections ...[2]string) {
	llmMu.Lock()
	defer llmMu.Unlock()
	if llmSink == nil {
		return
	}
	var b strings.Builder
	b.WriteString(time.Now().Format("2006/01/02 15:04:05 "))
	b.WriteString(header)
	b.WriteByte('\n')
	for _, sec := range sections {
		fmt.Fprintf(&b, "--- %s ---\n%s", sec[0], sec[1])
		if !strings.HasSuffix(sec[1], "\n") {
			b.WriteByte('\n')
		}
	}
	b.WriteString("=====\n")
	_, _ = io.WriteString(llmSink, b.String())
}

// LogLLMRequest records the prompts sent to the oracle.
func LogLLMRequest(meta LLMMeta, systemPrompt, userPrompt string) {
	writeLLM(meta.header("request"), [2]string{"SYSTEM", systemPrompt}, [2]string{"USER", userPrompt})
}

// LogLLMResponse records the raw model output, before any parsing.
func LogLLMResponse(meta LLMMeta, raw string) {
	writeLLM(meta.header("response"), [2]string{"RAW", raw})
}
