package console

import (
	"net/http"

	"kvsdoorbell/internal/external"
	"kvsdoorbell/internal/types"
)

const (
	msgDoorbellSent     = "Alexa.DoorbellEventSource.DoorbellPress correctly sent"
	msgDoorbellFallback = "An exception occurred while submitting the doorbell announcement. Please see the logs."
	msgTokenRenewed     = "New TOKEN is available. See below"
	msgTokenFallback    = "An exception occurred while requesting a new LWA Token. Please see the logs."
)

// doorbellResponse is the JSON answer to a successful POST /doorbell.
type doorbellResponse struct {
	MessageID string `json:"message_id"`
	Entry     Entry  `json:"entry"`
}

// tokenResponse is the JSON answer to a successful POST /token.
type tokenResponse struct {
	Token *external.Token `json:"token"`
	Entry Entry           `json:"entry"`
}

// journalResponse is the body of GET /journal.
type journalResponse struct {
	Entries []journalLine `json:"entries"`
}

type journalLine struct {
	Entry
	Line string `json:"line"`
}

// pageData feeds templates/index.html.
type pageData struct {
	Regions       []external.Region
	DefaultRegion string
	EndpointID    string
	BearerToken   string
	Token         *external.Token
	DoorbellLines []string
	LWALines      []string
}

// HandleIndex renders the console page.
func (s *Server) HandleIndex(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Regions:       external.Regions(),
		DefaultRegion: s.Config.Gateway.DefaultRegion,
		EndpointID:    s.Config.DefaultDevice.EndpointID,
		Token:         s.LastToken(),
		DoorbellLines: lines(s.Journal.Channel(ChannelDoorbell)),
		LWALines:      lines(s.Journal.Channel(ChannelLWA)),
	}
	if data.Token != nil {
		data.BearerToken = data.Token.AccessToken
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		s.Logger.Error("rendering console page", "error", err)
	}
}

// HandleDoorbell sends a DoorbellPress event for the submitted region, bearer
// token and endpoint id.
func (s *Server) HandleDoorbell(w http.ResponseWriter, r *http.Request) {
	var form doorbellForm
	if err := s.bind(w, r, &form); err != nil {
		s.fail(w, r, ChannelDoorbell, err, msgDoorbellFallback)
		return
	}
	region, err := external.ParseRegion(form.Region)
	if err != nil {
		s.fail(w, r, ChannelDoorbell, err, msgDoorbellFallback)
		return
	}
	if err := s.validateForm(&form); err != nil {
		s.fail(w, r, ChannelDoorbell, err, msgDoorbellFallback)
		return
	}

	messageID, err := s.events.SendDoorbellPress(r.Context(), external.DoorbellPress{
		Region:     region,
		Token:      types.SecretString(form.Token),
		EndpointID: form.EndpointID,
	})
	if err != nil {
		s.fail(w, r, ChannelDoorbell, err, msgDoorbellFallback)
		return
	}

	s.Logger.Info("doorbell press sent",
		"region", string(region),
		"endpoint_id", form.EndpointID,
		"message_id", messageID,
	)
	entry := s.record(ChannelDoorbell, LevelInfo, msgDoorbellSent)
	s.respond(w, r, http.StatusAccepted, doorbellResponse{MessageID: messageID, Entry: entry})
}

// HandleToken renews an LWA access token. The new token prefills the
// doorbell form and is shown on the page.
func (s *Server) HandleToken(w http.ResponseWriter, r *http.Request) {
	var form tokenForm
	if err := s.bind(w, r, &form); err != nil {
		s.fail(w, r, ChannelLWA, err, msgTokenFallback)
		return
	}
	if err := s.validateForm(&form); err != nil {
		s.fail(w, r, ChannelLWA, err, msgTokenFallback)
		return
	}

	token, err := s.tokens.RefreshToken(r.Context(), external.RefreshRequest{
		RefreshToken: form.RefreshToken,
		ClientID:     form.ClientID,
		ClientSecret: types.SecretString(form.ClientSecret),
	})
	if err != nil {
		s.fail(w, r, ChannelLWA, err, msgTokenFallback)
		return
	}

	s.setLastToken(token)
	s.Logger.Info("lwa token renewed", "client_id", form.ClientID, "expires_in", token.ExpiresIn)
	entry := s.record(ChannelLWA, LevelInfo, msgTokenRenewed)
	s.respond(w, r, http.StatusOK, tokenResponse{Token: token, Entry: entry})
}

// HandleJournal returns the journal, oldest entry first.
func (s *Server) HandleJournal(w http.ResponseWriter, r *http.Request) {
	entries := s.Journal.Entries()
	out := journalResponse{Entries: make([]journalLine, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, journalLine{Entry: e, Line: e.Line()})
	}
	JSON(w, r, http.StatusOK, out)
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Journal int    `json:"journal_entries"`
}

// HandleHealth reports liveness. The console has no backing store, so it is
// healthy whenever it can answer.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, healthResponse{
		Status:  "healthy",
		Version: s.Config.Build.Version,
		Journal: s.Journal.Len(),
	})
}

// fail journals err as an ERROR line and answers with a JSON error or a
// redirect back to the page.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, c Channel, err error, fallback string) {
	s.Logger.Error("console action failed",
		"channel", string(c),
		"request_id", types.GetRequestID(r.Context()),
		"error", err,
	)
	s.record(c, LevelError, external.Describe(err, fallback))

	if wantsJSON(r) {
		Error(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, body any) {
	if wantsJSON(r) {
		JSON(w, r, status, body)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func lines(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Line())
	}
	return out
}
