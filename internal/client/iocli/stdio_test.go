package iocli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Проверяем что NewStdio возвращает валидный объект
func TestNewStdio(t *testing.T) {
	stdio := NewStdio()
	assert.NotNil(t, stdio)
}

func TestStdio_Output(t *testing.T) {
	var out bytes.Buffer
	stdio := newStdio(strings.NewReader(""), &out)

	stdio.Println("hello", "world")
	stdio.Printf("test %d %s\n", 1, "abc")
	_, err := stdio.Write([]byte("raw"))
	require.NoError(t, err)

	assert.Equal(t, "hello world\ntest 1 abc\nraw", out.String())
}

// Тест ReadInput: читаем из буфера вместо os.Stdin
func TestStdio_ReadInput(t *testing.T) {
	var out bytes.Buffer
	stdio := newStdio(strings.NewReader("  user input \nlast"), &out)

	result, err := stdio.ReadInput("Prompt: ")
	require.NoError(t, err)
	assert.Equal(t, "user input", result)
	assert.Equal(t, "Prompt: ", out.String())

	// последняя строка без перевода строки
	result, err = stdio.ReadInput("")
	require.NoError(t, err)
	assert.Equal(t, "last", result)

	_, err = stdio.ReadInput("")
	assert.Error(t, err)
}

func TestStdio_ReadPassword_NotTerminal(t *testing.T) {
	stdio := newStdio(strings.NewReader("secret-token\n"), &bytes.Buffer{})

	token, err := stdio.ReadPassword("Token: ")
	require.NoError(t, err)
	assert.Equal(t, "secret-token", token)
}
