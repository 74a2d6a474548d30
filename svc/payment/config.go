package payment

import "time"

type Config struct {
	KeyID         string        `env:"RAZORPAY_KEY_ID,required"`
	KeySecret     string        `env:"RAZORPAY_KEY_SECRET,required"`
	WebhookSecret string        `env:"RAZORPAY_WEBHOOK_SECRET,required"`
	BaseURL       string        `env:"RAZORPAY_BASE_URL" envDefault:"https://api.razorpay.com"`
	Timeout       time.Duration `env:"RAZORPAY_TIMEOUT" envDefault:"15s"`
}
