package analyze

import (
	"errors"

	"image-reader/api/internal/vision"
)

type Level string

const (
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

const (
	MsgEmptyPrompt = "Please enter a prompt or question."
	MsgNoImage     = "Please upload an image first."
	MsgOffTopic    = "I apologize, but I can only answer questions about the content of the uploaded image. " +
		"Please ask something about what you can see in the image."
)

// Outcome: что показать пользователю вместо ответа.
type Outcome struct {
	Level   Level
	Code    string
	Message string
}

// Explain maps an Analyze error to its display path. Any error that is not a
// validation error is treated as an inference failure.
func Explain(err error) Outcome {
	switch {
	case err == nil:
		return Outcome{}
	case errors.Is(err, ErrEmptyPrompt):
		return Outcome{Level: LevelWarning, Code: "empty_prompt", Message: MsgEmptyPrompt}
	case errors.Is(err, ErrNoImage):
		return Outcome{Level: LevelWarning, Code: "no_image", Message: MsgNoImage}
	case errors.Is(err, ErrOffTopic):
		return Outcome{Level: LevelError, Code: "off_topic", Message: MsgOffTopic}
	}
	kind, _ := vision.KindOf(err)
	return Outcome{
		Level:   LevelError,
		Code:    "inference_" + kind.String(),
		Message: "An error occurred: " + err.Error(),
	}
}

// IsValidation reports whether err was produced before the engine was called.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNoImage) || errors.Is(err, ErrEmptyPrompt) || errors.Is(err, ErrOffTopic)
}
