package intake_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"bomstudio/internal/intake"
	"bomstudio/internal/services"
	"bomstudio/internal/workflow"
)

type fakeEnqueuer struct {
	reqs []workflow.Request
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, req workflow.Request) (workflow.Submission, error) {
	f.reqs = append(f.reqs, req)
	return workflow.Submission{ClientID: "c1", ProjectID: "p1", VideoID: "v1"}, nil
}

func TestMapFieldsMatchesFuzzyKeys(t *testing.T) {
	brief, email := intake.MapFields([]intake.Field{
		{Key: "Email Address", Value: "owner@acme.test"},
		{Key: "Business Name", Value: "Acme Bakery"},
		{Key: "what_do_you_offer", Value: "sourdough"},
		{Key: "Target Audience", Value: "commuters"},
		{Key: "What makes you unique", Value: "open at 5am"},
		{Key: "tone", Value: "bold"},
		{Key: "Lang", Value: "NL"},
		{Key: "video_topic", Value: "Spring Sale"},
		{Key: "ignored", Value: "x"},
	})
	if email != "owner@acme.test" {
		t.Fatalf("unexpected email %q", email)
	}
	if brief.BusinessName != "Acme Bakery" || brief.WhatTheySell != "sourdough" || brief.TargetCustomer != "commuters" {
		t.Fatalf("unexpected brief %+v", brief)
	}
	if brief.WhatMakesDifferent != "open at 5am" || brief.Tone != "bold" || brief.Language != "NL" || brief.Topic != "Spring Sale" {
		t.Fatalf("unexpected brief %+v", brief)
	}
}

func TestMapFieldsDefaultsAndLabels(t *testing.T) {
	brief, email := intake.MapFields([]intake.Field{
		{Key: "question_abc", Label: "Your email", Value: "a@b.com"},
		{Key: "question_def", Label: "Pick topics", Value: []any{"sale", "launch"}},
		{Key: "tone", Value: nil},
	})
	if email != "a@b.com" {
		t.Fatalf("expected label match for email, got %q", email)
	}
	if brief.Topic != "sale, launch" {
		t.Fatalf("unexpected topic %q", brief.Topic)
	}
	if brief.Tone != "friendly" || brief.Language != "EN" {
		t.Fatalf("expected defaults, got tone=%q language=%q", brief.Tone, brief.Language)
	}
}

func decode(t *testing.T, body string) intake.Submission {
	t.Helper()
	var sub intake.Submission
	if err := json.Unmarshal([]byte(body), &sub); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return sub
}

func TestHandleAcceptsFormResponse(t *testing.T) {
	enq := &fakeEnqueuer{}
	h := intake.NewHandler(enq, nil)
	sub := decode(t, `{"eventId":"e1","eventType":"FORM_RESPONSE","createdAt":"2026-01-01T00:00:00Z",
		"data":{"fields":[{"key":"email","label":"Email","value":"a@b.com"},{"key":"business_name","label":"Business","value":"Acme"}]}}`)

	resp, err := h.Handle(context.Background(), sub)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.Status != "accepted" || resp.Message != "Video generation queued" || resp.VideoID != "v1" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(enq.reqs) != 1 || enq.reqs[0].Email != "a@b.com" || enq.reqs[0].Brief.BusinessName != "Acme" {
		t.Fatalf("unexpected enqueue %+v", enq.reqs)
	}
}

func TestHandleIgnoresOtherEvents(t *testing.T) {
	enq := &fakeEnqueuer{}
	resp, err := intake.NewHandler(enq, nil).Handle(context.Background(), decode(t, `{"eventType":"FORM_DELETED"}`))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.Status != "ignored" || resp.Message != "Ignoring event type: FORM_DELETED" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(enq.reqs) != 0 {
		t.Fatal("ignored event must not enqueue")
	}
}

func TestHandleRequiresEmail(t *testing.T) {
	h := intake.NewHandler(&fakeEnqueuer{}, nil)
	_, err := h.Handle(context.Background(), decode(t, `{"eventType":"FORM_RESPONSE","fields":[{"key":"topic","value":"x"}]}`))
	if !errors.Is(err, services.ErrValidation) || services.Details(err).Message != "Email field required" {
		t.Fatalf("expected email validation error, got %v", err)
	}
	_, err = h.Handle(context.Background(), decode(t, `{"eventType":"FORM_RESPONSE","fields":[{"key":"email","value":"not-an-email"}]}`))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for malformed email, got %v", err)
	}
}
