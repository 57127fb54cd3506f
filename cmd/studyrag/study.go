package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"studyrag/internal/domain"
	"studyrag/internal/vectorindex"
)

var (
	quickWords int
	cardCount  int
	dueLimit   int
	deadline   string
)

func init() {
	rootCmd.AddCommand(summarizeCmd, quickSummaryCmd, flashcardsCmd, planCmd, deleteCmd)
	flashcardsCmd.AddCommand(flashcardsGenerateCmd, flashcardsDueCmd, flashcardsReviewCmd)
	deleteCmd.AddCommand(deleteDocumentCmd, deleteWorkspaceCmd)

	quickSummaryCmd.Flags().IntVar(&quickWords, "words", 150, "Maximum summary length in words")
	flashcardsGenerateCmd.Flags().IntVar(&cardCount, "count", 10, "Number of flashcards to generate")
	flashcardsDueCmd.Flags().IntVar(&dueLimit, "limit", 10, "Maximum number of due cards to list")
	planCmd.Flags().StringVar(&deadline, "deadline", "", "Deadline as YYYY-MM-DD (required)")
	_ = planCmd.MarkFlagRequired("deadline")
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [document-id]",
	Short: "Write a study guide for one document or every document in the workspace",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				s, err := a.service.SummarizeDocument(ctx, args[0])
				if err != nil {
					return err
				}
				printSummary(out, s)
				return nil
			}
			results, err := a.service.SummarizeWorkspace(ctx, workspaceID)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintf(out, "No documents in workspace %q.\n", workspaceID)
				return nil
			}
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(out, "FAILED %s (%s): %v\n\n", r.Document.Filename, r.Document.ID, r.Err)
					continue
				}
				printSummary(out, r.Summary)
				fmt.Fprintln(out)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(results))
			}
			return nil
		})
	},
}

func printSummary(w io.Writer, s domain.Summary) {
	fmt.Fprintf(w, "# %s\n\n%s\n", s.Filename, s.Text)
	if s.Fallback {
		fmt.Fprintln(w, "\n(model unavailable: outline built from the document structure)")
	}
}

var quickSummaryCmd = &cobra.Command{
	Use:   "quick-summary <document-id>",
	Short: "Summarize a document in one paragraph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			text, _, err := a.service.QuickSummary(ctx, args[0], quickWords)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		})
	},
}

var flashcardsCmd = &cobra.Command{
	Use:   "flashcards",
	Short: "Generate and review spaced-repetition flashcards",
}

var flashcardsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate flashcards from a sample of the workspace documents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			cards, fallback, err := a.service.GenerateFlashcards(ctx, workspaceID, cardCount)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if fallback {
				fmt.Fprintln(out, "(model unavailable: stored generic review cards)")
			}
			printCards(out, cards)
			return nil
		})
	},
}

var flashcardsDueCmd = &cobra.Command{
	Use:   "due",
	Short: "List flashcards due for review",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			cards, err := a.service.DueFlashcards(ctx, workspaceID, dueLimit)
			if err != nil {
				return err
			}
			if len(cards) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing due.")
				return nil
			}
			printCards(cmd.OutOrStdout(), cards)
			return nil
		})
	},
}

var flashcardsReviewCmd = &cobra.Command{
	Use:   "review <card-id> <quality 0-5>",
	Short: "Record a review and schedule the next one",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: card id %q", domain.ErrInvalidInput, args[0])
		}
		quality, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%w: quality %q", domain.ErrInvalidInput, args[1])
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			card, err := a.service.ReviewFlashcard(ctx, id, quality)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "card %d: next review %s (interval %d days, EF %.2f)\n",
				card.ID, card.State.NextReview.Local().Format(time.DateOnly), card.State.Interval, card.State.EasinessFactor)
			return nil
		})
	},
}

func printCards(w io.Writer, cards []domain.Flashcard) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDUE\tQUESTION\tANSWER")
	for _, c := range cards {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", c.ID, c.State.NextReview.Local().Format(time.DateOnly), c.Question, c.Answer)
	}
	_ = tw.Flush()
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan study days up to a deadline",
	RunE: func(cmd *cobra.Command, _ []string) error {
		due, err := time.ParseInLocation(time.DateOnly, deadline, time.Local)
		if err != nil {
			return fmt.Errorf("%w: deadline %q, want YYYY-MM-DD", domain.ErrInvalidInput, deadline)
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			res, err := a.service.StudyPlan(ctx, workspaceID, due)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Plan)
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove documents or whole workspaces",
}

var deleteDocumentCmd = &cobra.Command{
	Use:   "document <document-id>",
	Short: "Delete a document and its embeddings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			status, err := a.service.DeleteDocument(ctx, args[0])
			return reportDelete(cmd.OutOrStdout(), "document "+args[0], status, err)
		})
	},
}

var deleteWorkspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Delete every document, flashcard and chat message of the workspace",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			status, err := a.service.DeleteWorkspace(ctx, workspaceID)
			return reportDelete(cmd.OutOrStdout(), "workspace "+workspaceID, status, err)
		})
	},
}

func reportDelete(w io.Writer, what string, status vectorindex.CleanupStatus, err error) error {
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%s not found", what)
		}
		return err
	}
	fmt.Fprintf(w, "deleted %s\n", what)
	if !status.OK() {
		fmt.Fprintf(w, "warning: embeddings may remain: %v\n", status.Err)
	}
	return nil
}
