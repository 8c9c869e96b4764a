package main

import (
	"context"
	"time"

	"github.com/shandysiswandi/otpgate/internal/app"
)

const shutdownTimeout = 15 * time.Second

func main() {
	otpgate := app.New()
	<-otpgate.Start()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	otpgate.Stop(ctx)
}
