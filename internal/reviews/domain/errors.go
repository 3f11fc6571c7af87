package domain

import "errors"

var (
	ErrNoOpenOrder         = errors.New("no open order for sender")
	ErrAlreadyAnswered     = errors.New("question already answered")
	ErrDuplicatePriority   = errors.New("question priority already exists for order")
	ErrPriorityOutOfRange  = errors.New("question priority out of range")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrSynthesisFailed     = errors.New("question synthesis failed")
	ErrDeliveryFailed      = errors.New("message delivery failed")
	ErrUnknownEvent        = errors.New("unknown event payload")
	ErrEmptyAnswer         = errors.New("answer is empty")
)
