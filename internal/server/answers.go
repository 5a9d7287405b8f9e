// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"strings"

	"github.com/jeranaias/campusgpt-tui/internal/model"
)

// FailMarker in a question makes the server report a mid-stream error.
const FailMarker = "#fail"

// fallbackAnswer is returned when no canned topic matches.
const fallbackAnswer = "I couldn't find that in the campus documents. Try rephrasing, or contact the student help desk."

// Topic is one canned answer and the documents it cites.
type Topic struct {
	Keywords []string
	Answer   string
	Sources  []model.Citation
}

// DefaultTopics is the built-in knowledge base.
var DefaultTopics = []Topic{
	{
		Keywords: []string{"library", "hours"},
		Answer:   "The main library is open 8am-10pm Monday to Friday and 10am-6pm on weekends.",
		Sources: []model.Citation{
			{ID: "1", Name: "Student Handbook", Label: "PDF", Page: "12"},
			{ID: "4", Name: "Library Services", Label: "Web", Timestamp: "00:01:30"},
		},
	},
	{
		Keywords: []string{"park", "permit"},
		Answer:   "Student permits are valid in Lots C and D. Permits can be bought online from the transport office.",
		Sources: []model.Citation{
			{ID: "7", Name: "Parking Guide", Label: "PDF", Page: "2"},
		},
	},
	{
		Keywords: []string{"register", "registration", "enroll", "deadline"},
		Answer:   "Registration for the spring term closes on the last Friday of January. Late registration needs advisor approval.",
		Sources: []model.Citation{
			{ID: "2", Name: "Academic Calendar", Label: "PDF", Page: "1"},
		},
	},
	{
		Keywords: []string{"tuition", "fees", "payment"},
		Answer:   "Tuition is due two weeks before the term starts. Payment plans are available through the bursar's office.",
		Sources: []model.Citation{
			{ID: "3", Name: "Bursar FAQ", Label: "Web"},
		},
	},
}

// KnowledgeBase picks canned answers by keyword.
type KnowledgeBase struct {
	topics []Topic
}

// NewKnowledgeBase builds a KnowledgeBase; nil topics means DefaultTopics.
func NewKnowledgeBase(topics []Topic) *KnowledgeBase {
	if topics == nil {
		topics = DefaultTopics
	}
	return &KnowledgeBase{topics: topics}
}

// Answer returns the first topic whose keyword appears in question.
func (kb *KnowledgeBase) Answer(question string) (string, []model.Citation) {
	q := strings.ToLower(question)
	for _, t := range kb.topics {
		for _, kw := range t.Keywords {
			if strings.Contains(q, kw) {
				return t.Answer, append([]model.Citation(nil), t.Sources...)
			}
		}
	}
	return fallbackAnswer, []model.Citation{}
}

// splitWords cuts text into chunks that each keep their trailing space, so
// concatenating them restores text exactly.
func splitWords(text string) []string {
	var chunks []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == ' ' {
			chunks = append(chunks, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		chunks = append(chunks, text[start:])
	}
	return chunks
}
