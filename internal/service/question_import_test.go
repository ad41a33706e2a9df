package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/pkg/errors"
)

func TestParseQuestionRow(t *testing.T) {
	input, err := parseQuestionRow([]string{"Столица Франции?", "Лондон; Париж; Берлин", "2", "20", "150"})
	require.NoError(t, err)

	assert.Equal(t, "Столица Франции?", input.Text)
	assert.Equal(t, []string{"Лондон", "Париж", "Берлин"}, input.Options)
	// В файле нумерация с единицы, внутри — с нуля
	assert.Equal(t, 1, input.CorrectOption)
	assert.Equal(t, 20, input.TimeLimitSec)
	assert.Equal(t, 150, input.PointValue)
}

func TestParseQuestionRow_OptionalColumnsOmitted(t *testing.T) {
	input, err := parseQuestionRow([]string{"Вопрос", "Да; Нет", "1"})
	require.NoError(t, err)

	assert.Equal(t, 0, input.CorrectOption)
	assert.Zero(t, input.TimeLimitSec)
	assert.Zero(t, input.PointValue)
}

func TestParseQuestionRow_Errors(t *testing.T) {
	_, err := parseQuestionRow([]string{"Вопрос", "Да; Нет"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = parseQuestionRow([]string{"Вопрос", "Да; Нет", "abc"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = parseQuestionRow([]string{"Вопрос", "Да; Нет", "1", "xx"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestSplitOptions_TrimsAndDropsEmpty(t *testing.T) {
	options := splitOptions(" a ;; b ; ")
	assert.Equal(t, []string{"a", "b"}, options)
}
