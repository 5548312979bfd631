// Package jobs holds the background work queued through river. Today
// that is only the activation email.
package jobs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"

	"github.com/soilmonitoring/phoenix-iam/core"
)

// ActivationEmailArgs is the payload of one activation email job.
type ActivationEmailArgs struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Code     string `json:"code"`
}

func (ActivationEmailArgs) Kind() string { return "activation_email" }

// ActivationEmailWorker renders and sends the activation email.
type ActivationEmailWorker struct {
	river.WorkerDefaults[ActivationEmailArgs]

	Sender core.EmailSender
}

func (w *ActivationEmailWorker) Work(ctx context.Context, job *river.Job[ActivationEmailArgs]) error {
	body := fmt.Sprintf(
		"Hello %s,\n\nYour activation code is %s. It expires in 5 minutes.\n",
		job.Args.Username, job.Args.Code,
	)
	if err := w.Sender.Send(ctx, job.Args.Email, "Activate your account", body); err != nil {
		return fmt.Errorf("send activation email: %w", err)
	}
	return nil
}

// NewWorkers registers every worker this module runs.
func NewWorkers(sender core.EmailSender) (*river.Workers, error) {
	workers := river.NewWorkers()
	if err := river.AddWorkerSafely(workers, &ActivationEmailWorker{Sender: sender}); err != nil {
		return nil, fmt.Errorf("register activation worker: %w", err)
	}
	return workers, nil
}

// RiverNotifier queues activation emails instead of sending inline, so
// registration latency never depends on the mail path.
type RiverNotifier struct {
	Client *river.Client[pgx.Tx]
}

func (n *RiverNotifier) NotifyActivation(ctx context.Context, email, username, code string) error {
	_, err := n.Client.Insert(ctx, ActivationEmailArgs{Email: email, Username: username, Code: code}, nil)
	if err != nil {
		return fmt.Errorf("queue activation email: %w", err)
	}
	return nil
}
