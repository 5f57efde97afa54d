package log

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/net/context"

	contextPkg "github.com/Sei0217/visually-impaired/pkg/context"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

func TestLevelFromEnv(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, levelFromEnv(""))
	assert.Equal(t, logrus.WarnLevel, levelFromEnv("warn"))
	assert.Equal(t, logrus.DebugLevel, levelFromEnv("chatty"))
}

func TestErrorWithTraceID(t *testing.T) {
	assert.Equal(t, "req-1", ErrorWithTraceID(Fields{RequestIDKey: "req-1"}, "boom"))

	id := ErrorWithTraceID(nil, "boom")
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}

func TestWithRequestID(t *testing.T) {
	entry := WithRequestID(contextPkg.WithRequestID(context.Background(), "abc"))
	assert.Equal(t, "abc", entry.Data[RequestIDKey])

	assert.Equal(t, "unknown", WithRequestID(context.Background()).Data[RequestIDKey])
}
