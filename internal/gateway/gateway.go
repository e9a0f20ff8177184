// Package gateway implements the payment gateway client. It speaks a
// Snap-style HTTP API: token creation for itemized transactions and
// signed server-to-server status notifications.
package gateway

import (
	"bytes"
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/geraidev/checkout/internal/domain/payment"
)

var _ payment.Gateway = (*Client)(nil)

// Client calls the gateway over HTTP. The server key authenticates every
// request via Basic auth with an empty password.
type Client struct {
	baseURL   string
	serverKey string
	http      *http.Client
}

// NewClient creates a gateway client for the given base URL and server key.
func NewClient(baseURL, serverKey string) *Client {
	return &Client{
		baseURL:   baseURL,
		serverKey: serverKey,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// tokenRequest is the wire shape of the token creation call.
type tokenRequest struct {
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount string `json:"gross_amount"`
	} `json:"transaction_details"`
	ItemDetails     []itemDetail    `json:"item_details"`
	CustomerDetails customerDetails `json:"customer_details"`
}

type itemDetail struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
}

type customerDetails struct {
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// CreateToken exchanges an itemized payment intent for an opaque checkout
// token. Gateway-side rejections surface as errors carrying the gateway's
// own messages.
func (c *Client) CreateToken(ctx context.Context, intent payment.Intent) (string, error) {
	var req tokenRequest
	req.TransactionDetails.OrderID = intent.OrderID
	req.TransactionDetails.GrossAmount = intent.GrossAmount.String()
	req.ItemDetails = make([]itemDetail, len(intent.Items))
	for i, it := range intent.Items {
		req.ItemDetails[i] = itemDetail{
			ID:       it.ID,
			Name:     it.Name,
			Price:    it.Price.String(),
			Quantity: it.Quantity,
		}
	}
	req.CustomerDetails = customerDetails{
		FirstName: intent.Customer.Name,
		Email:     intent.Customer.Email,
		Phone:     intent.Customer.Phone,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", errors.Wrap(err, "encode token request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transactions", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build token request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(c.serverKey, "")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, "call gateway")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "read gateway response")
	}

	token, gwErrs, err := decodeTokenResponse(raw)
	if err != nil {
		return "", errors.Wrapf(err, "decode gateway response (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		if len(gwErrs) > 0 {
			return "", errors.Errorf("gateway refused: %s", gwErrs[0])
		}
		return "", errors.Errorf("gateway returned status %d", resp.StatusCode)
	}
	if token == "" {
		return "", errors.New("gateway returned no token")
	}
	return token, nil
}

// decodeTokenResponse pulls the token and any error_messages out of the
// gateway's JSON without binding to the rest of its shape.
func decodeTokenResponse(raw []byte) (token string, gwErrs []string, err error) {
	d := jx.DecodeBytes(raw)
	err = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "token":
			v, err := d.Str()
			if err != nil {
				return err
			}
			token = v
			return nil
		case "error_messages":
			return d.Arr(func(d *jx.Decoder) error {
				v, err := d.Str()
				if err != nil {
					return err
				}
				gwErrs = append(gwErrs, v)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	return token, gwErrs, err
}

// Notification is a server-to-server payment status update from the gateway.
type Notification struct {
	OrderID           string
	StatusCode        string
	GrossAmount       decimal.Decimal
	TransactionStatus string
	FraudStatus       string
	SignatureKey      string
}

// ErrBadSignature is returned when a notification's signature does not match.
var ErrBadSignature = errors.New("notification signature mismatch")

// DecodeNotification parses a raw notification body. Unknown fields are
// skipped so gateway-side additions never break parsing.
func DecodeNotification(raw []byte) (*Notification, error) {
	var n Notification
	d := jx.DecodeBytes(raw)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "order_id":
			v, err := d.Str()
			n.OrderID = v
			return err
		case "status_code":
			v, err := d.Str()
			n.StatusCode = v
			return err
		case "gross_amount":
			v, err := d.Str()
			if err != nil {
				return err
			}
			n.GrossAmount, err = decimal.NewFromString(v)
			return err
		case "transaction_status":
			v, err := d.Str()
			n.TransactionStatus = v
			return err
		case "fraud_status":
			v, err := d.Str()
			n.FraudStatus = v
			return err
		case "signature_key":
			v, err := d.Str()
			n.SignatureKey = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode notification")
	}
	if n.OrderID == "" {
		return nil, errors.New("notification missing order_id")
	}
	return &n, nil
}

// VerifySignature checks the notification against the shared server key.
// The signature is sha512(order_id + status_code + gross_amount + serverKey).
func (n *Notification) VerifySignature(serverKey string) error {
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount.String() + serverKey))
	want := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(want), []byte(n.SignatureKey)) != 1 {
		return ErrBadSignature
	}
	return nil
}

// Status maps the gateway's transaction and fraud statuses onto the core
// payment statuses. A challenged capture stays pending until the gateway
// re-notifies with a final verdict.
func (n *Notification) Status() payment.Status {
	switch n.TransactionStatus {
	case "capture":
		if n.FraudStatus == "challenge" {
			return payment.StatusPending
		}
		return payment.StatusCapture
	case "settlement":
		return payment.StatusSettlement
	case "pending":
		return payment.StatusPending
	case "deny":
		return payment.StatusDeny
	case "cancel":
		return payment.StatusCancel
	case "expire":
		return payment.StatusExpire
	default:
		return payment.Status(n.TransactionStatus)
	}
}
