// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tokens adapts text sources to the streaming engine. A Producer
// delivers text deltas in arrival order and signals completion with io.EOF.
package tokens

import (
	"context"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// Producer is a pull-based source of text chunks. Next returns io.EOF when
// the source is exhausted; any other error aborts the stream.
type Producer interface {
	Next(ctx context.Context) (string, error)
}

// ChannelProducer delivers chunks from a channel. Closing the channel ends
// the stream.
type ChannelProducer struct {
	ch <-chan string
}

func NewChannelProducer(ch <-chan string) *ChannelProducer {
	return &ChannelProducer{ch: ch}
}

func (p *ChannelProducer) Next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case chunk, ok := <-p.ch:
		if !ok {
			return "", io.EOF
		}
		return chunk, nil
	}
}

// ReaderProducer delivers fixed-size chunks from an io.Reader, simulating a
// token stream from pre-written text.
type ReaderProducer struct {
	r   io.Reader
	buf []byte
}

const readerChunkSize = 512

func NewReaderProducer(r io.Reader) *ReaderProducer {
	return &ReaderProducer{r: r, buf: make([]byte, readerChunkSize)}
}

func (p *ReaderProducer) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	n, err := p.r.Read(p.buf)
	if n > 0 {
		return string(p.buf[:n]), nil
	}
	if err == nil {
		err = io.EOF
	}
	return "", err
}

// OpenAIProducer streams chat-completion deltas from the OpenAI API.
type OpenAIProducer struct {
	stream *openai.ChatCompletionStream
}

func NewOpenAIProducer(ctx context.Context, client *openai.Client, model, prompt string) (*OpenAIProducer, error) {
	stream, err := client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:  model,
		Stream: true,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, err
	}
	return &OpenAIProducer{stream: stream}, nil
}

// Next returns the next delta. The underlying stream yields io.EOF on
// completion, which passes through unchanged.
func (p *OpenAIProducer) Next(_ context.Context) (string, error) {
	resp, err := p.stream.Recv()
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (p *OpenAIProducer) Close() error {
	return p.stream.Close()
}
