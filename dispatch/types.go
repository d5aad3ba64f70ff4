package dispatch

// CTA is a call-to-action button attached to a welcome message
type CTA struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	URL   string `json:"url"`
}

// CTATypeWebURL is the only CTA type Twitter accepts on welcome messages
const CTATypeWebURL = "web_url"

// MessageData is the body of a welcome message. CTAs is omitted from the wire when empty
type MessageData struct {
	Text string `json:"text"`
	CTAs []CTA  `json:"ctas,omitempty"`
}

// Credentials identify the linked account the message is created for
type Credentials struct {
	AccessTokenKey    string
	AccessTokenSecret string
	ExternalAccountID string
	AccountHandle     string
}

// WelcomeMessage is the descriptor Twitter returns for a created welcome message
type WelcomeMessage struct {
	ID               string      `json:"id"`
	CreatedTimestamp string      `json:"created_timestamp"`
	Name             string      `json:"name"`
	MessageData      MessageData `json:"message_data"`
}

type welcomeMessageRequest struct {
	Name           string             `json:"name"`
	WelcomeMessage welcomeMessageBody `json:"welcome_message"`
}

type welcomeMessageBody struct {
	MessageData MessageData `json:"message_data"`
}

type welcomeMessageResponse struct {
	WelcomeMessage WelcomeMessage `json:"welcome_message"`
	Name           string         `json:"name"`
}

type errorResponse struct {
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}
