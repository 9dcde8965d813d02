package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mbeoliero/parley/rest"
	"github.com/mbeoliero/parley/session"
)

var registerCmd = &cobra.Command{
	Use:   "register <username> <email> <password>",
	Short: "Create an account and sign in",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		user, err := s.Register(cmd.Context(), &rest.RegisterRequest{
			Username: args[0],
			Email:    args[1],
			Password: args[2],
		})
		if err != nil {
			return err
		}
		if err := saveToken(s.Token()); err != nil {
			return err
		}
		fmt.Printf("Registered as %s (%s)\n", user.Username, user.Id)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <email> <password>",
	Short: "Sign in and store the session token",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		user, err := s.Login(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if err := saveToken(s.Token()); err != nil {
			return err
		}
		fmt.Printf("Logged in as %s\n", user.Username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and discard the stored token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resumed(cmd)
		if err == nil {
			s.Logout(cmd.Context())
		}
		clearToken()
		fmt.Println("Logged out")
		return nil
	},
}

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the signed-in profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resumed(cmd)
		if err != nil {
			return err
		}
		u := s.User()
		fmt.Printf("Id:       %s\n", u.Id)
		fmt.Printf("Username: %s\n", u.Username)
		fmt.Printf("Email:    %s\n", u.Email)
		if u.Bio != "" {
			fmt.Printf("Bio:      %s\n", u.Bio)
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search users by username or email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resumed(cmd)
		if err != nil {
			return err
		}
		users, err := s.API().SearchUsers(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\n", u.Id, u.Username, u.Email)
		}
		return w.Flush()
	},
}

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "List saved contacts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resumed(cmd)
		if err != nil {
			return err
		}
		users, err := s.API().GetContacts(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\n", u.Id, u.Username, u.Email)
		}
		return w.Flush()
	},
}

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"convos", "ls"},
	Short:   "List conversations, most recent first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resumed(cmd)
		if err != nil {
			return err
		}
		if err := s.Engine().LoadConversations(cmd.Context()); err != nil {
			return err
		}
		localId := s.User().Id
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tUNREAD\tLAST MESSAGE")
		for _, c := range s.Engine().Conversations() {
			last := ""
			if c.LastMessage != nil {
				last = c.LastMessage.Content
				if len(last) > 40 {
					last = last[:40] + "..."
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", c.Id, c.DisplayName(localId), c.UnreadCount, last)
		}
		return w.Flush()
	},
}

var sendFileCmd = &cobra.Command{
	Use:   "send-file <conversation-id> <path>",
	Short: "Upload a file into a conversation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resumed(cmd)
		if err != nil {
			return err
		}
		if err := s.Engine().LoadConversations(cmd.Context()); err != nil {
			return err
		}
		caption, _ := cmd.Flags().GetString("caption")
		if err := sendFile(cmd, s.Engine(), args[0], args[1], caption); err != nil {
			return err
		}
		return nil
	},
}

// resumed restores a session from the stored token and fails when
// none is stored or the server rejects it
func resumed(cmd *cobra.Command) (*session.Session, error) {
	token := loadToken()
	if token == "" {
		return nil, fmt.Errorf("not logged in, run `parley login` first")
	}
	sess, err := newSession()
	if err != nil {
		return nil, err
	}
	if _, err := sess.Resume(cmd.Context(), token); err != nil {
		clearToken()
		return nil, fmt.Errorf("session expired, run `parley login` again: %w", err)
	}
	return sess, nil
}

func formatTime(ts int64) string {
	if ts == 0 {
		return ""
	}
	return time.Unix(ts, 0).Local().Format("15:04")
}
