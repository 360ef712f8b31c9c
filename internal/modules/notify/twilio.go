// README: Twilio voice and SMS delivery. Voice messages are sent as inline TwiML.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"
)

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	// WebhookBase is the public base URL the digit webhook is reachable at.
	WebhookBase string
}

type TwilioChannel struct {
	client *twilio.RestClient
	cfg    TwilioConfig
}

func NewTwilioChannel(cfg TwilioConfig) (*TwilioChannel, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil, errors.New("twilio: account sid, auth token and from number are required")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioChannel{client: client, cfg: cfg}, nil
}

func (c *TwilioChannel) Deliver(ctx context.Context, m Message) (string, error) {
	// The REST client has no context support; the call is abandoned, not aborted, on timeout.
	type result struct {
		sid string
		err error
	}
	done := make(chan result, 1)
	go func() {
		var r result
		switch m.Medium {
		case MediumVoice:
			r.sid, r.err = c.call(m)
		case MediumSMS:
			r.sid, r.err = c.sms(m)
		default:
			r.err = fmt.Errorf("twilio cannot deliver %s", m.Medium)
		}
		done <- r
	}()
	select {
	case <-ctx.Done():
		return "", deliveryErr(m.Medium, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return "", deliveryErr(m.Medium, r.err)
		}
		return r.sid, nil
	}
}

func (c *TwilioChannel) call(m Message) (string, error) {
	doc, err := VoiceTwiML(m.Body, m.Voice, c.gatherAction(m))
	if err != nil {
		return "", err
	}
	params := &api.CreateCallParams{}
	params.SetTo(m.Destination)
	params.SetFrom(c.cfg.From)
	params.SetTwiml(doc)
	resp, err := c.client.Api.CreateCall(params)
	if err != nil {
		return "", err
	}
	if resp.Sid == nil {
		return "", errors.New("twilio returned no call sid")
	}
	return *resp.Sid, nil
}

func (c *TwilioChannel) sms(m Message) (string, error) {
	params := &api.CreateMessageParams{}
	params.SetTo(m.Destination)
	params.SetFrom(c.cfg.From)
	params.SetBody(m.Body)
	resp, err := c.client.Api.CreateMessage(params)
	if err != nil {
		return "", err
	}
	if resp.Sid == nil {
		return "", errors.New("twilio returned no message sid")
	}
	return *resp.Sid, nil
}

func (c *TwilioChannel) gatherAction(m Message) string {
	if m.Gather == "" || c.cfg.WebhookBase == "" {
		return ""
	}
	q := url.Values{}
	q.Set("context", m.Gather)
	q.Set("ride_id", string(m.RideID))
	return c.cfg.WebhookBase + "/ivr/digits?" + q.Encode()
}

// VoiceTwiML speaks text; with a gather action it collects one digit and posts it there.
func VoiceTwiML(text, voice, gatherAction string) (string, error) {
	if voice == "" {
		voice = voiceDefault
	}
	say := &twiml.VoiceSay{Message: text, Voice: voice}
	if gatherAction == "" {
		return twiml.Voice([]twiml.Element{say})
	}
	gather := &twiml.VoiceGather{
		Action:        gatherAction,
		Method:        "POST",
		NumDigits:     "1",
		Timeout:       "10",
		InnerElements: []twiml.Element{say},
	}
	fallback := &twiml.VoiceSay{Message: "We did not receive any input. Goodbye.", Voice: voice}
	return twiml.Voice([]twiml.Element{gather, fallback})
}
