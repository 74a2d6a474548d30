// Package payment sells plans through Razorpay.
//
// Checkout creates an order at the gateway and stores it so the plan and
// billing cycle are read back from our own record at activation time, never
// from client input. Both the client-side confirmation (Verify) and the
// server-to-server webhook (HandleWebhook) are authenticated with hex
// HMAC-SHA256 signatures from pkg/webhook and end in ledger.Service.Activate,
// which is idempotent on the payment id.
package payment
