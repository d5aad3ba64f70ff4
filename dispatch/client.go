// Package dispatch creates welcome messages through the Twitter Direct Message API
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"go.uber.org/zap"
)

// DefaultBaseURL is the Twitter API v1.1 root
const DefaultBaseURL = "https://api.twitter.com/1.1"

const welcomeMessagePath = "/direct_messages/welcome_messages/new.json"

// Options contains the configuration of Client
type Options struct {
	ConsumerKey    string
	ConsumerSecret string
	Logger         *zap.Logger

	// BaseURL defaults to DefaultBaseURL
	BaseURL string
	// HTTPClient is the transport the signed requests go through, http.DefaultClient if nil
	HTTPClient *http.Client
	// Now defaults to time.Now
	Now func() time.Time
}

func (o *Options) validate() error {
	if len(o.ConsumerKey) == 0 {
		return fmt.Errorf("empty ConsumerKey is invalid")
	}
	if len(o.ConsumerSecret) == 0 {
		return fmt.Errorf("empty ConsumerSecret is invalid")
	}
	if o.Logger == nil {
		return fmt.Errorf("nil Logger is invalid")
	}
	if len(o.BaseURL) == 0 {
		o.BaseURL = DefaultBaseURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return nil
}

// Client signs requests with the application's consumer credentials and the user's token pair
type Client struct {
	Options
	config *oauth1.Config
}

// New returns a Client
func New(option Options) (*Client, error) {
	if err := option.validate(); err != nil {
		return nil, err
	}
	return &Client{
		Options: option,
		config:  oauth1.NewConfig(option.ConsumerKey, option.ConsumerSecret),
	}, nil
}

// Name returns the welcome message name Twitter stores for the account at the given time
func Name(creds Credentials, at time.Time) string {
	return fmt.Sprintf("%s-%s-%d", creds.ExternalAccountID, creds.AccountHandle, at.UnixNano()/int64(time.Millisecond))
}

// Dispatch creates a welcome message on behalf of the account. Failures are one of
// *RateLimitError, *APIError or *TransportError
func (c *Client) Dispatch(ctx context.Context, creds Credentials, data MessageData) (*WelcomeMessage, error) {
	name := Name(creds, c.Now())
	logger := c.Logger.With(
		zap.String("TwitterUserID", creds.ExternalAccountID),
		zap.String("Name", name),
	)

	body, err := json.Marshal(welcomeMessageRequest{
		Name: name,
		WelcomeMessage: welcomeMessageBody{
			MessageData: data,
		},
	})
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+welcomeMessagePath, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	signed := c.config.Client(
		context.WithValue(ctx, oauth1.HTTPClient, c.HTTPClient),
		oauth1.NewToken(creds.AccessTokenKey, creds.AccessTokenSecret),
	)
	res, err := signed.Do(req)
	if err != nil {
		logger.Error("Unable to reach Twitter",
			zap.Error(err),
		)
		return nil, &TransportError{Err: err}
	}
	defer res.Body.Close()

	payload, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return nil, &TransportError{StatusCode: res.StatusCode, Err: err}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		err := classify(res, payload)
		logger.Warn("Twitter rejected welcome message",
			zap.Int("StatusCode", res.StatusCode),
			zap.Error(err),
		)
		return nil, err
	}

	var created welcomeMessageResponse
	if err := json.Unmarshal(payload, &created); err != nil {
		return nil, &TransportError{StatusCode: res.StatusCode, Err: err}
	}
	msg := created.WelcomeMessage
	if len(msg.Name) == 0 {
		msg.Name = created.Name
	}
	logger.Info("Welcome message created", zap.String("WelcomeMessageID", msg.ID))
	return &msg, nil
}

func classify(res *http.Response, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err != nil {
		return &TransportError{StatusCode: res.StatusCode, Err: err}
	}
	if len(apiErr.Errors) == 0 {
		return &TransportError{StatusCode: res.StatusCode, Err: errors.New("response carries no error details")}
	}

	first := apiErr.Errors[0]
	if first.Code == CodeRateLimitExceeded {
		return &RateLimitError{ResetAt: resetTime(res.Header.Get("x-rate-limit-reset"))}
	}
	return &APIError{
		StatusCode: res.StatusCode,
		Code:       first.Code,
		Message:    first.Message,
	}
}

// resetTime parses the epoch seconds Twitter reports; unparseable values yield zero time
func resetTime(header string) time.Time {
	sec, err := strconv.ParseInt(strings.TrimSpace(header), 10, 64)
	if err != nil || sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
