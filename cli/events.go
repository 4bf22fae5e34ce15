package cli

import (
	"fmt"
	"time"

	"github.com/docker/go-units"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"go.viam.com/gatekeeper/events"
	"go.viam.com/gatekeeper/render"
)

// EventsAction lists recent activations from the activation log.
func EventsAction(c *cli.Context) error {
	log, err := events.Open(c.Context, c.Path(dbFlag))
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(log.Close)

	activations, err := log.Recent(c.Context, c.Int(limitFlag))
	if err != nil {
		return err
	}
	if len(activations) == 0 {
		printf(c.App.Writer, "no activations recorded")
		return nil
	}
	printf(c.App.Writer, "%s", activationTable(activations, time.Now()))
	return nil
}

// activationTable renders activations newest first, as returned by the log.
func activationTable(activations []events.Activation, now time.Time) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Time (UTC)", "Age", "Frame", "Detection", "Box", "ID"})
	for _, a := range activations {
		name := a.Detection.Label
		if name == "" {
			name = fmt.Sprintf("class %d", a.Detection.ClassID)
		}
		b := a.Detection.BoundingBox
		t.AppendRow(table.Row{
			a.Time.UTC().Format("2006-01-02 15:04:05.000"),
			units.HumanDuration(now.Sub(a.Time)) + " ago",
			a.FrameIndex,
			render.Label(name, a.Detection),
			fmt.Sprintf("[%d %d %d %d]", b.Min.X, b.Min.Y, b.Max.X, b.Max.Y),
			a.ID,
		})
	}
	return t.Render()
}
