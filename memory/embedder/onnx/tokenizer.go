package onnx

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// Tokenizer is a BERT WordPiece tokenizer driven by the vocabulary of a
// Hugging Face tokenizer.json file. Text is lowercased and split on
// whitespace and punctuation.
type Tokenizer struct {
	vocab map[string]int64
	cls   int64
	sep   int64
	unk   int64
}

// LoadTokenizer reads the vocabulary from tokenizer.json.
func LoadTokenizer(path string) (*Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file struct {
		Model struct {
			Vocab map[string]int64 `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return NewTokenizer(file.Model.Vocab)
}

// NewTokenizer builds a tokenizer from a vocabulary that contains the
// [CLS], [SEP] and [UNK] tokens.
func NewTokenizer(vocab map[string]int64) (*Tokenizer, error) {
	t := &Tokenizer{vocab: vocab}
	for _, special := range []struct {
		token string
		id    *int64
	}{
		{"[CLS]", &t.cls},
		{"[SEP]", &t.sep},
		{"[UNK]", &t.unk},
	} {
		id, ok := vocab[special.token]
		if !ok {
			return nil, fmt.Errorf("vocabulary has no %s token", special.token)
		}
		*special.id = id
	}
	return t, nil
}

// Encode returns input ids, attention mask and token type ids for text,
// padded to maxLen and wrapped in [CLS] ... [SEP].
func (t *Tokenizer) Encode(text string, maxLen int) (ids, mask, types []int64) {
	ids = make([]int64, maxLen)
	mask = make([]int64, maxLen)
	types = make([]int64, maxLen)

	tokens := t.Tokenize(text)
	if len(tokens) > maxLen-2 {
		tokens = tokens[:maxLen-2]
	}

	ids[0], mask[0] = t.cls, 1
	for i, tok := range tokens {
		ids[i+1], mask[i+1] = tok, 1
	}
	end := len(tokens) + 1
	ids[end], mask[end] = t.sep, 1
	return ids, mask, types
}

// Tokenize converts text to WordPiece token ids without special tokens.
func (t *Tokenizer) Tokenize(text string) []int64 {
	var tokens []int64
	for _, word := range splitWords(strings.ToLower(text)) {
		if id, ok := t.vocab[word]; ok {
			tokens = append(tokens, id)
			continue
		}
		tokens = append(tokens, t.wordPiece(word)...)
	}
	return tokens
}

// wordPiece splits a word into the longest known prefixes. A word with any
// unknown piece becomes a single [UNK].
func (t *Tokenizer) wordPiece(word string) []int64 {
	runes := []rune(word)
	var pieces []int64
	for start := 0; start < len(runes); {
		end := len(runes)
		found := false
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				pieces = append(pieces, id)
				found = true
				break
			}
			end--
		}
		if !found {
			return []int64{t.unk}
		}
		start = end
	}
	return pieces
}

// splitWords splits on whitespace and keeps each punctuation rune as its
// own word.
func splitWords(text string) []string {
	var words []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = current[:0]
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			current = append(current, r)
		}
	}
	flush()
	return words
}
