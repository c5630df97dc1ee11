package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/dailybackup/internal/adapter/secret"
	"github.com/semmidev/dailybackup/internal/config"
	"github.com/semmidev/dailybackup/internal/domain"
)

func testAlert() domain.Alert {
	return domain.Alert{
		From:    "auto_backup@shop.com",
		To:      "ops@example.com",
		Subject: "Backup from db.local(192.168.0.5) failed",
		Body:    "line one\nline two",
	}
}

func TestEmailAlerter(t *testing.T) {
	Convey("Given an EmailAlerter with a captured transport", t, func() {
		alerter, err := NewEmail(&config.SMTPConfig{Host: "smtp.example.com", Port: 2525}, secret.NewResolver())
		So(err, ShouldBeNil)

		var (
			calls  int
			gotTo  []string
			gotMsg string
			gotBy  string
			gotAt  string
		)
		alerter.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
		alerter.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			calls++
			gotAt, gotBy, gotTo, gotMsg = addr, from, to, string(msg)
			return nil
		}

		Convey("It sends a plain text message to the alert recipient", func() {
			So(alerter.SendAlert(context.Background(), testAlert()), ShouldBeNil)
			So(calls, ShouldEqual, 1)
			So(gotAt, ShouldEqual, "smtp.example.com:2525")
			So(gotBy, ShouldEqual, "auto_backup@shop.com")
			So(gotTo, ShouldResemble, []string{"ops@example.com"})
			So(gotMsg, ShouldContainSubstring, "Subject: Backup from db.local(192.168.0.5) failed\r\n")
			So(gotMsg, ShouldContainSubstring, "\r\n\r\nline one\r\nline two\r\n")
		})

		Convey("Without a configured sender the header carries the alert address only", func() {
			So(alerter.SendAlert(context.Background(), testAlert()), ShouldBeNil)
			So(gotMsg, ShouldContainSubstring, "From: auto_backup@shop.com\r\n")
			So(gotMsg, ShouldNotContainSubstring, "Reply-To:")
		})

		Convey("A configured sender is used in both the envelope and the header", func() {
			alerter.sender = "relay@example.com"
			So(alerter.SendAlert(context.Background(), testAlert()), ShouldBeNil)
			So(gotBy, ShouldEqual, "relay@example.com")
			So(gotMsg, ShouldContainSubstring, "From: relay@example.com\r\n")
			So(gotMsg, ShouldContainSubstring, "Reply-To: auto_backup@shop.com\r\n")
			So(gotMsg, ShouldNotContainSubstring, "From: auto_backup@shop.com")
		})

		Convey("An alert without a recipient is skipped", func() {
			a := testAlert()
			a.To = ""
			So(alerter.SendAlert(context.Background(), a), ShouldBeNil)
			So(calls, ShouldEqual, 0)
		})

		Convey("A transport failure is returned", func() {
			alerter.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
				return errors.New("connection refused")
			}
			err := alerter.SendAlert(context.Background(), testAlert())
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "connection refused")
		})
	})

	Convey("NewEmail requires a host", t, func() {
		_, err := NewEmail(&config.SMTPConfig{}, secret.NewResolver())
		So(err, ShouldNotBeNil)
	})
}

func TestTelegramAlerter(t *testing.T) {
	Convey("Given a TelegramAlerter against a fake bot API", t, func() {
		var (
			mu    sync.Mutex
			texts []string
			chats []string
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm()
			w.Header().Set("Content-Type", "application/json")
			switch {
			case strings.HasSuffix(r.URL.Path, "/getMe"):
				_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"backup","username":"backup_bot"}}`))
			case strings.HasSuffix(r.URL.Path, "/sendMessage"):
				mu.Lock()
				texts = append(texts, r.PostForm.Get("text"))
				chats = append(chats, r.PostForm.Get("chat_id"))
				mu.Unlock()
				_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"},"text":"ok"}}`))
			default:
				http.NotFound(w, r)
			}
		}))
		defer srv.Close()

		bot, err := tgbotapi.NewBotAPIWithClient("token", srv.URL+"/bot%s/%s", srv.Client())
		So(err, ShouldBeNil)
		alerter := newTelegram(bot, 42)

		Convey("It posts the subject and body to the chat", func() {
			So(alerter.SendAlert(context.Background(), testAlert()), ShouldBeNil)

			mu.Lock()
			defer mu.Unlock()
			So(len(texts), ShouldEqual, 1)
			So(chats[0], ShouldEqual, "42")
			So(texts[0], ShouldContainSubstring, "Backup from db.local(192.168.0.5) failed")
			So(texts[0], ShouldContainSubstring, "line two")
		})
	})

	Convey("NewTelegram rejects a non-numeric chat id", t, func() {
		_, err := NewTelegram(&config.TelegramConfig{BotToken: "t", ChatID: "ops"}, secret.NewResolver())
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "invalid telegram chat id")
	})
}

type recordingAlerter struct {
	err   error
	calls int
}

func (r *recordingAlerter) SendAlert(ctx context.Context, a domain.Alert) error {
	r.calls++
	return r.err
}

func TestMulti(t *testing.T) {
	Convey("Given a Multi alerter", t, func() {
		first := &recordingAlerter{err: errors.New("smtp down")}
		second := &recordingAlerter{}
		m := Multi{first, second}

		Convey("A failing channel does not stop the next one", func() {
			err := m.SendAlert(context.Background(), testAlert())
			So(first.calls, ShouldEqual, 1)
			So(second.calls, ShouldEqual, 1)
			So(errors.Is(err, domain.ErrNotification), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "smtp down")
		})

		Convey("All channels succeeding yields nil", func() {
			first.err = nil
			So(m.SendAlert(context.Background(), testAlert()), ShouldBeNil)
		})

		Convey("An empty Multi is a no-op", func() {
			So(Multi{}.SendAlert(context.Background(), testAlert()), ShouldBeNil)
		})
	})
}
