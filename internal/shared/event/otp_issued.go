package event

const OTPIssuedDestination string = "otp_issued"
const OTPIssuedConsumerNotification string = "otp_issued_notification"

// OTPIssuedMessage carries the plaintext code to the notification consumer.
// CorrelationID duplicates the cID header for brokers without headers (nsq).
type OTPIssuedMessage struct {
	Email         string `json:"email"`
	Profile       string `json:"profile,omitempty"`
	Code          string `json:"code"`
	ExpiresAt     int64  `json:"expires_at"`
	TTLSeconds    int64  `json:"ttl_seconds"`
	CorrelationID string `json:"correlation_id,omitempty"`
}
