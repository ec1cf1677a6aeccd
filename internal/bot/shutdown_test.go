package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestShutdownClosesInReverseOrder(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), time.Second)

	var order []string
	sh.AddFunc("journal", func() error {
		order = append(order, "journal")
		return nil
	})
	sh.AddFunc("bus", func() error {
		order = append(order, "bus")
		return errors.New("flush failed")
	})

	err := sh.Shutdown(context.Background())
	assert.ErrorContains(t, err, "bus: flush failed")
	assert.Equal(t, []string{"bus", "journal"}, order)

	// повторный вызов ничего не закрывает
	assert.NoError(t, sh.Shutdown(context.Background()))
}

func TestShutdownTimeout(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), 10*time.Millisecond)
	block := make(chan struct{})
	defer close(block)
	sh.AddFunc("stuck", func() error {
		<-block
		return nil
	})

	assert.ErrorContains(t, sh.Shutdown(context.Background()), "shutdown timeout")
}
