package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evstation/config"
	corebilling "github.com/kilianp07/evstation/core/billing"
	"github.com/kilianp07/evstation/core/clock"
	"github.com/kilianp07/evstation/core/model"
	"github.com/kilianp07/evstation/core/station"
	"github.com/kilianp07/evstation/infra/logger"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a simulated charging scenario on an accelerated clock",
	RunE:  runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	clk := clock.NewVirtual()
	start := time.Date(2026, 9, 1, 6, 0, 0, 0, time.Local)
	clk.SetTime(start)

	store := corebilling.NewMemoryStore()
	st, err := station.New(config.Default().StationSpec(), station.Deps{
		Clock:  clk,
		Sink:   corebilling.StoreSink{Store: store},
		Logger: logger.NewZerologLogger("demo"),
	})
	if err != nil {
		return err
	}

	vehicles := []struct {
		mode string
		req  model.VehicleRequest
	}{
		{"F", model.VehicleRequest{CarID: "CAR-001", UserID: "u1", Username: "alice", EnergyKWh: 30}},
		{"F", model.VehicleRequest{CarID: "CAR-002", UserID: "u2", Username: "bob", EnergyKWh: 15}},
		{"T", model.VehicleRequest{CarID: "CAR-003", UserID: "u3", Username: "carol", EnergyKWh: 7}},
	}
	for _, v := range vehicles {
		number, err := st.AddVehicle(v.mode, v.req)
		if err != nil {
			return err
		}
		fmt.Printf("admitted %s as %s\n", v.req.CarID, number)
	}

	// One tick allocates, then the clock jumps forward until every session
	// has run to completion.
	st.Tick()
	for i := 0; i < 8; i++ {
		clk.SetTime(clk.Now().Add(30 * time.Minute))
		st.Tick()
	}

	bills, err := store.Query(context.Background(), corebilling.Query{})
	if err != nil {
		return err
	}
	fmt.Printf("\n%d sessions completed between %s and %s\n",
		len(bills), start.Format("15:04"), clk.Now().Format("15:04"))
	for _, b := range bills {
		fmt.Printf("  %s on pile %s: %.2f kWh in %.0f min, charge %.2f + service %.2f = %.2f\n",
			b.VehicleID, b.PileID, b.EnergyKWh, b.DurationMin, b.ChargingCost, b.ServiceCost, b.TotalCost)
	}
	return nil
}
