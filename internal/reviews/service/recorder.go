package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"servewell_backend/internal/reviews/domain"
	"servewell_backend/internal/reviews/ports"
	"servewell_backend/platform/logger"
	"servewell_backend/platform/metrics"
)

// AudioResult describes how a voice answer was recorded.
type AudioResult struct {
	AudioKey            string
	Transcript          string
	TranscriptionFailed bool
}

// Recorder applies inbound answers to the pending question.
type Recorder struct {
	store       ports.Store
	transcriber ports.Transcriber
	audio       ports.AudioStore
	language    string
	log         *logger.Logger
	now         func() time.Time
}

// NewRecorder creates a Recorder. language is passed to the transcriber as a hint.
func NewRecorder(store ports.Store, transcriber ports.Transcriber, audio ports.AudioStore, language string, log *logger.Logger) *Recorder {
	return &Recorder{
		store:       store,
		transcriber: transcriber,
		audio:       audio,
		language:    language,
		log:         log,
		now:         time.Now,
	}
}

// RecordText stores a typed answer. Blank text returns domain.ErrEmptyAnswer.
func (r *Recorder) RecordText(ctx context.Context, q domain.Question, text, messageID string) error {
	answer := strings.TrimSpace(text)
	if answer == "" {
		return domain.ErrEmptyAnswer
	}
	if err := r.store.UpdateAnswer(ctx, q.ID, ports.AnswerUpdate{Answer: &answer, MessageID: messageID}); err != nil {
		return fmt.Errorf("record text answer for question %s: %w", q.ID, err)
	}
	return nil
}

// RecordAudio stores the voice note, transcribes it and answers the question in
// one conditional write. A failed transcription still answers the question by
// its audio reference.
func (r *Recorder) RecordAudio(ctx context.Context, order domain.Order, q domain.Question, raw []byte, mime, messageID string) (AudioResult, error) {
	if len(raw) == 0 {
		return AudioResult{}, domain.ErrEmptyAnswer
	}

	key := AudioObjectKey(order, q, mime, r.now())
	if err := r.audio.PutAudio(ctx, key, mime, raw); err != nil {
		return AudioResult{}, fmt.Errorf("store audio for question %s: %w", q.ID, err)
	}

	result := AudioResult{AudioKey: key}
	update := ports.AnswerUpdate{AudioKey: &key, MessageID: messageID}

	transcript, err := r.transcriber.Transcribe(ctx, raw, mime, r.language)
	if err != nil {
		result.TranscriptionFailed = true
		r.log.WithContext(ctx).CollaboratorFailure("transcriber", fmt.Errorf("%w: %v", domain.ErrTranscriptionFailed, err))
		metrics.RecordCollaboratorFailure(ctx, "transcriber")
	} else if text := strings.TrimSpace(transcript); text != "" {
		result.Transcript = text
		update.Answer = &text
	}

	if err := r.store.UpdateAnswer(ctx, q.ID, update); err != nil {
		if errors.Is(err, domain.ErrAlreadyAnswered) {
			// Nothing references the upload.
			if delErr := r.audio.DeleteAudio(ctx, key); delErr != nil {
				r.log.WithContext(ctx).Warn("failed to delete unreferenced audio", "audioKey", key, "error", delErr)
			}
		}
		return result, fmt.Errorf("record audio answer for question %s: %w", q.ID, err)
	}
	return result, nil
}

// AudioObjectKey names the stored voice note for a question.
func AudioObjectKey(order domain.Order, q domain.Question, mime string, at time.Time) string {
	ext := "mp3"
	if strings.Contains(strings.ToLower(mime), "ogg") {
		ext = "ogg"
	}
	return fmt.Sprintf("orders/%s/question_%s_%d.%s", order.ID, q.ID, at.Unix(), ext)
}
