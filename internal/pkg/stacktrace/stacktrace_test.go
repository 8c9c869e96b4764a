package stacktrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternalPaths(t *testing.T) {
	stack := []byte(`goroutine 7 [running]:
runtime/debug.Stack()
	/usr/local/go/src/runtime/debug/stack.go:26 +0x5e
github.com/shandysiswandi/otpgate/internal/pkg/goroutine.(*Manager).recover(0xc000010000)
	/src/otpgate/internal/pkg/goroutine/goroutine.go:84 +0x45
github.com/shandysiswandi/otpgate/internal/otp/usecase.(*Usecase).RequestOtp(...)
	/src/otpgate/internal/otp/usecase/request_otp.go:41
`)

	got := InternalPaths(stack)

	assert.Equal(t, []string{
		"internal/pkg/goroutine/goroutine.go:84",
		"internal/otp/usecase/request_otp.go:41",
	}, got)
}

func TestInternalPaths_NoInternalFrames(t *testing.T) {
	assert.Empty(t, InternalPaths([]byte("main.main()\n\t/src/main.go:10 +0x1\n")))
}
