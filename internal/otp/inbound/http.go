package inbound

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/otp/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
)

type uc interface {
	RequestOtp(ctx context.Context, in usecase.RequestOtpInput) (*usecase.RequestOtpOutput, error)
	ValidateOtp(ctx context.Context, in usecase.ValidateOtpInput) (*usecase.ValidateOtpOutput, error)
	RecordStatus(ctx context.Context, in usecase.RecordStatusInput) (*usecase.RecordStatusOutput, error)
	SweepExpired(ctx context.Context) (int64, error)
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	// Public
	r.POST("/api/v1/otp/request", end.RequestOtp)
	r.POST("/api/v1/otp/validate", end.ValidateOtp)

	// Operator (need authenticated & authorization)
	r.GET("/api/v1/otp/records/:email", end.RecordStatus, r.Permission("otp.record", "read"))
	r.POST("/api/v1/otp/records/sweep", end.Sweep, r.Permission("otp.record", "delete"))
}
