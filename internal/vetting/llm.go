package vetting

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/podreach/leadpipe/internal/model"
	"github.com/podreach/leadpipe/pkg/anthropic"
)

// maxProfileChars is the truncation limit for the profile text sent to Claude.
const maxProfileChars = 8000

// matchPrompt is the system prompt for qualitative match scoring.
const matchPrompt = `You are evaluating a podcast as a guest-appearance target. Given the podcast profile and the requester's criteria, score the match on a scale of 0.0 to 1.0 based on:
- Topical fit: does the show's subject matter align with the requester's expertise and talking points?
- Audience fit: would the show's listeners plausibly care about the requester's message?
- Format fit: does the show appear to feature outside guests?

Respond with ONLY valid JSON, no other text:
{"score": 0.0, "explanation": "brief explanation"}`

type matchResponse struct {
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

// scoreMatch asks Claude for a qualitative match score. Failures are wrapped
// as ErrScoringMetricUnavailable so the caller excludes the metric instead of
// failing the profile.
func scoreMatch(ctx context.Context, ai anthropic.Client, cfg Config, p model.EnrichedProfile, crit Criteria) (float64, string, error) {
	userMsg := buildMatchMessage(p, crit)

	resp, err := ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		System:    matchPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: userMsg}},
	})
	if err != nil {
		return 0, "", eris.Wrap(model.ErrScoringMetricUnavailable, err.Error())
	}

	text := resp.Text()
	if text == "" {
		return 0, "", eris.Wrap(model.ErrScoringMetricUnavailable, "empty claude response")
	}

	// Find JSON in the response (it may have surrounding text).
	jsonStart := strings.Index(text, "{")
	jsonEnd := strings.LastIndex(text, "}")
	if jsonStart < 0 || jsonEnd <= jsonStart {
		return 0, "", eris.Wrapf(model.ErrScoringMetricUnavailable, "no JSON in response: %s", text)
	}

	var result matchResponse
	if err := json.Unmarshal([]byte(text[jsonStart:jsonEnd+1]), &result); err != nil {
		return 0, "", eris.Wrap(model.ErrScoringMetricUnavailable, "parse response JSON")
	}

	// Clamp score to [0, 1].
	if result.Score < 0 {
		result.Score = 0
	}
	if result.Score > 1 {
		result.Score = 1
	}

	return result.Score, result.Explanation, nil
}

// buildMatchMessage renders the profile and criteria into the user message.
func buildMatchMessage(p model.EnrichedProfile, crit Criteria) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Podcast: %s\n", p.Lead.Title)
	if p.Lead.Author != "" {
		fmt.Fprintf(&b, "Author: %s\n", p.Lead.Author)
	}
	if len(p.HostNames) > 0 {
		fmt.Fprintf(&b, "Hosts: %s\n", strings.Join(p.HostNames, ", "))
	}
	if len(p.Lead.Categories) > 0 {
		fmt.Fprintf(&b, "Categories: %s\n", strings.Join(p.Lead.Categories, ", "))
	}
	if len(p.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(p.Keywords, ", "))
	}
	if count := p.EffectiveEpisodeCount(); count > 0 {
		fmt.Fprintf(&b, "Episodes: %d\n", count)
	}
	if p.PublishingFrequencyDays > 0 {
		fmt.Fprintf(&b, "Publishing cadence: every %.0f days\n", p.PublishingFrequencyDays)
	}
	if p.Lead.Description != "" {
		fmt.Fprintf(&b, "\nDescription:\n%s\n", p.Lead.Description)
	}

	fmt.Fprintf(&b, "\n---\nRequester criteria:\n%s\n", crit.IdealDescription)
	if crit.RequesterBio != "" {
		fmt.Fprintf(&b, "\nRequester bio:\n%s\n", crit.RequesterBio)
	}
	if len(crit.TalkingPoints) > 0 {
		fmt.Fprintf(&b, "\nTalking points:\n- %s\n", strings.Join(crit.TalkingPoints, "\n- "))
	}

	msg := b.String()
	if len(msg) > maxProfileChars {
		cut := maxProfileChars
		// Back up to a rune boundary so the cut never splits a character.
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return msg
}
