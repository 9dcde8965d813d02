package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mbeoliero/parley/chat"
	"github.com/mbeoliero/parley/realtime"
	"github.com/mbeoliero/parley/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat <conversation-id>",
	Short: "Open a conversation and chat interactively",
	Long: `Open a conversation and chat interactively.

Typed lines are sent as text messages. Commands:
  /older              load the previous page of history
  /file <path> [cap]  upload a file, with an optional caption
  /edit <id> <text>   edit one of your messages
  /del <id>           delete one of your messages
  /who                show who is typing and who is online
  /quit               leave the conversation`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resumed(cmd)
		if err != nil {
			return err
		}
		defer s.Channel().Disconnect()

		engine := s.Engine()
		if err := engine.LoadConversations(cmd.Context()); err != nil {
			return err
		}

		convId := args[0]
		if err := engine.SelectConversation(cmd.Context(), convId); err != nil {
			return err
		}
		conv := engine.ActiveConversation()
		fmt.Printf("-- %s --\n", conv.DisplayName(s.User().Id))
		for _, m := range engine.Messages() {
			printMessage(m)
		}

		subs := bindPrinters(s.Channel(), engine, convId)
		defer func() {
			for event, id := range subs {
				s.Channel().Unsubscribe(event, id)
			}
		}()

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "/") {
				if quit := runChatCommand(cmd, s, engine, convId, line); quit {
					break
				}
				continue
			}
			if err := engine.SendText(convId, line); err != nil {
				fmt.Println("!", err)
			}
		}
		return scanner.Err()
	},
}

func runChatCommand(cmd *cobra.Command, s *session.Session, engine *chat.Engine, convId, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/q":
		return true
	case "/older":
		if err := engine.LoadOlderMessages(cmd.Context()); err != nil {
			fmt.Println("!", err)
			break
		}
		for _, m := range engine.Messages() {
			printMessage(m)
		}
	case "/file":
		if len(fields) < 2 {
			fmt.Println("! usage: /file <path> [caption]")
			break
		}
		caption := strings.Join(fields[2:], " ")
		if err := sendFile(cmd, engine, convId, fields[1], caption); err != nil {
			fmt.Println("!", err)
		}
	case "/edit":
		if len(fields) < 3 {
			fmt.Println("! usage: /edit <id> <text>")
			break
		}
		if err := engine.EditMessage(cmd.Context(), fields[1], strings.Join(fields[2:], " ")); err != nil {
			fmt.Println("!", err)
		}
	case "/del":
		if len(fields) != 2 {
			fmt.Println("! usage: /del <id>")
			break
		}
		if err := engine.DeleteMessage(cmd.Context(), fields[1]); err != nil {
			fmt.Println("!", err)
		}
	case "/who":
		if typing := engine.TypingUsers(); len(typing) > 0 {
			fmt.Println("typing:", strings.Join(typing, ", "))
		}
		fmt.Println("online:", strings.Join(s.Channel().OnlineUsers(), ", "))
	default:
		fmt.Println("! unknown command:", fields[0])
	}
	return false
}

func sendFile(cmd *cobra.Command, engine *chat.Engine, convId, path, caption string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	msg, err := engine.SendMedia(cmd.Context(), convId, caption, filepath.Base(path), f, info.Size())
	if err != nil {
		return err
	}
	fmt.Printf("uploaded %s as message %s\n", filepath.Base(path), msg.Id)
	return nil
}

// bindPrinters subscribes display-only handlers for the open conversation
// and returns the subscription ids keyed by event name
func bindPrinters(ch *realtime.Manager, engine *chat.Engine, convId string) map[string]int {
	subs := map[string]int{}

	subs[realtime.EventMessageNew] = ch.Subscribe(realtime.EventMessageNew, func(data json.RawMessage) {
		var msg chat.Message
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		if msg.ConversationId == convId {
			printMessage(&msg)
		} else {
			fmt.Printf("(new message in %s)\n", msg.ConversationId)
		}
	})
	subs[realtime.EventMessageEdited] = ch.Subscribe(realtime.EventMessageEdited, func(data json.RawMessage) {
		var msg chat.Message
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		if msg.ConversationId == convId {
			fmt.Printf("(edited %s)\n", msg.Id)
			printMessage(&msg)
		}
	})
	subs[realtime.EventMessageDeleted] = ch.Subscribe(realtime.EventMessageDeleted, func(data json.RawMessage) {
		var p chat.DeletedPayload
		if json.Unmarshal(data, &p) != nil {
			return
		}
		if p.ConversationId == convId {
			fmt.Printf("(deleted %s)\n", p.MessageId)
		}
	})
	subs[realtime.EventTypingStart] = ch.Subscribe(realtime.EventTypingStart, func(data json.RawMessage) {
		var p chat.TypingPayload
		if json.Unmarshal(data, &p) != nil {
			return
		}
		if p.ConversationId == convId {
			fmt.Printf("(%s is typing...)\n", p.Username)
		}
	})
	return subs
}

func printMessage(m *chat.Message) {
	sender := "?"
	if m.Sender != nil {
		sender = m.Sender.Username
	}
	body := m.Content
	if m.Attachment != nil && body == "" {
		body = "[" + m.Attachment.Filename + "]"
	}
	suffix := ""
	if m.Edited {
		suffix = " (edited)"
	}
	fmt.Printf("[%s] %s: %s%s\n", formatTime(m.CreatedAt), sender, body, suffix)
}
