package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/MevanWeerasinghe/quiz-app/internal/app"
	"github.com/MevanWeerasinghe/quiz-app/internal/domain"
)

// WSHandler runs attempt sessions over a websocket. The server owns the
// countdown, so question advancement and timeout submission happen here even
// if the client goes quiet; a dropped connection while the attempt is live
// triggers the best-effort finalize path.
type WSHandler struct {
	attempts *app.AttemptService
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(attempts *app.AttemptService, log *logrus.Logger) *WSHandler {
	return &WSHandler{
		attempts: attempts,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	OptionIndex int `json:"optionIndex"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// questionPayload is the respondent-facing view of the current question.
// The correct index never crosses this boundary.
type questionPayload struct {
	Index     int      `json:"index"`
	Total     int      `json:"total"`
	Text      string   `json:"text"`
	Options   []string `json:"options"`
	Selected  *int     `json:"selected"`
	TimeLeft  int      `json:"timeLeft"`
	AllowBack bool     `json:"allowBack"`
}

type tickPayload struct {
	Index    int `json:"index"`
	TimeLeft int `json:"timeLeft"`
}

type infoPayload struct {
	Title         string `json:"title"`
	QuestionCount int    `json:"questionCount"`
	TimingMode    string `json:"timingMode"`
	TimeLimit     int    `json:"timeLimit"`
	AllowBack     bool   `json:"allowBack"`
	ShowResult    bool   `json:"showResult"`
	State         string `json:"state"`
}

// ServeAttempt upgrades the connection and wires it into one attempt session.
func (h *WSHandler) ServeAttempt(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	userEmail := r.URL.Query().Get("email")
	if quizID == "" || userID == "" {
		http.Error(w, "missing quizId or userId", http.StatusBadRequest)
		return
	}

	session, err := h.attempts.Session(r.Context(), quizID, userID, userEmail)
	if err != nil {
		status := http.StatusInternalServerError
		if err == domain.ErrQuizNotFound {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.WithError(err).Debug("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev := <-session.Events():
				msg, ok := h.eventMessage(session, ev)
				if !ok {
					continue
				}
				select {
				case send <- msg:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	quiz := session.Quiz()
	snap := session.Snapshot()
	send <- outboundMessage[any]{Type: "info", Payload: infoPayload{
		Title:         quiz.Title,
		QuestionCount: len(quiz.Questions),
		TimingMode:    string(quiz.TimingMode),
		TimeLimit:     quiz.TimeLimitMinutes,
		AllowBack:     quiz.AllowBack,
		ShowResult:    quiz.ShowResult,
		State:         snap.State.String(),
	}}
	if snap.State == app.StateInProgress {
		// Reconnect into a live attempt: resume at the current question.
		send <- outboundMessage[any]{Type: "question", Payload: h.questionView(session, snap)}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		switch inbound.Type {
		case "start":
			snap, err := session.Start(r.Context())
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			if snap.State == app.StateBlocked {
				send <- outboundMessage[any]{Type: "blocked", Payload: errorPayload{Message: domain.ErrAlreadySubmitted.Error()}}
				continue
			}
			go session.Run(runCtx)
			send <- outboundMessage[any]{Type: "question", Payload: h.questionView(session, snap)}

		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid select payload"}}
				continue
			}
			snap, err := session.Select(payload.OptionIndex)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "question", Payload: h.questionView(session, snap)}

		case "next":
			snap, err := session.Next()
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "question", Payload: h.questionView(session, snap)}

		case "prev":
			snap, err := session.Prev()
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "question", Payload: h.questionView(session, snap)}

		case "submit":
			result, err := session.Submit(r.Context())
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "completed", Payload: result}

		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	// Connection gone. If the attempt is still live this is the
	// navigation-away path: fire-and-forget, nothing may block teardown.
	if st := session.Snapshot().State; st == app.StateInProgress {
		session.Abandon()
	}
	h.attempts.Release(quizID, userID)

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

func (h *WSHandler) eventMessage(session *app.AttemptSession, ev app.AttemptEvent) (outboundMessage[any], bool) {
	switch ev.Type {
	case app.EventTick:
		return outboundMessage[any]{Type: "tick", Payload: tickPayload{Index: ev.Index, TimeLeft: ev.TimeLeft}}, true
	case app.EventAdvanced:
		return outboundMessage[any]{Type: "question", Payload: h.questionView(session, session.Snapshot())}, true
	case app.EventCompleted:
		if ev.Result == nil {
			return outboundMessage[any]{}, false
		}
		return outboundMessage[any]{Type: "completed", Payload: *ev.Result}, true
	}
	return outboundMessage[any]{}, false
}

func (h *WSHandler) questionView(session *app.AttemptSession, snap app.AttemptSnapshot) questionPayload {
	quiz := session.Quiz()
	q := quiz.Questions[snap.Index]
	return questionPayload{
		Index:     snap.Index,
		Total:     snap.Total,
		Text:      q.Text,
		Options:   q.Options,
		Selected:  snap.Selected,
		TimeLeft:  snap.TimeLeft,
		AllowBack: quiz.AllowBack,
	}
}
