// wptsim drops a fleet of IoT devices around a power beacon and a RIS and
// reports how long the beacon needs to charge all of them.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"

	humanize "github.com/dustin/go-humanize"
	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/wiless/vlib"

	"github.com/wiless/rischarge"
	"github.com/wiless/rischarge/antenna"
	"github.com/wiless/rischarge/deployment"
)

var outdir string
var indir string
var currentdir string

func SwitchBack() {
	log.Debugf("Switching back to %s", currentdir)
	os.Chdir(currentdir)
}

func SwitchOutput() {
	pwd, _ := os.Getwd()
	currentdir = pwd
	log.Debugf("Switching to OUTPUT %s", outdir)
	os.Chdir(outdir)
}

// ReadConfig resolves the input and output directories, creating outdir
// when it does not exist.
func ReadConfig() error {
	defaultdir, _ := os.Getwd()
	currentdir = defaultdir

	finfo, err := os.Stat(indir)
	if err != nil {
		return fmt.Errorf("input dir %s: %w", indir, err)
	}
	if !finfo.IsDir() {
		return fmt.Errorf("input dir %s is not a directory", indir)
	}

	finfo, err = os.Stat(outdir)
	if err != nil {
		log.Info("Creating OUTPUT directory : ", outdir)
		if err := os.MkdirAll(outdir, os.ModeDir|os.ModePerm); err != nil {
			return err
		}
	} else if !finfo.IsDir() {
		return fmt.Errorf("output dir %s is not a directory", outdir)
	}

	outdir, _ = filepath.Abs(outdir)
	indir, _ = filepath.Abs(indir)
	log.WithFields(log.Fields{"work": defaultdir, "input": indir, "output": outdir}).Info("directories")
	return nil
}

func setupLogging(verbose bool, format string) {
	switch format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.SetLevel(log.InfoLevel)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
}

func main() {
	flag.StringVar(&outdir, "outdir", ".", "Directory where all the output files are generated..")
	flag.StringVar(&indir, "indir", ".", "Directory where config.yaml is read from..")
	help := flag.Bool("help", false, "prints this help")
	verbose := flag.Bool("v", false, "Print debug logs")
	format := flag.String("log-format", "text", "log format: text or json")
	dump := flag.Bool("dump-config", false, "print the effective configuration as YAML and exit")
	flag.Parse()

	if *help {
		flag.PrintDefaults()
		return
	}
	setupLogging(*verbose, *format)

	if err := ReadConfig(); err != nil {
		log.Fatal(err)
	}
	cfg, err := ReadAppConfig(indir)
	if err != nil {
		log.Fatal(err)
	}
	if *dump {
		if err := DumpConfig(os.Stdout, cfg); err != nil {
			log.Fatal(err)
		}
		return
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g, wcss, err := dropDevices(cfg)
	if err != nil {
		log.Fatal(err)
	}
	result, err := rischarge.NewSystem(cfg).Run(ctx, g)
	if err != nil {
		log.Fatal(err)
	}

	printSummary(cfg, result)

	SwitchOutput()
	defer SwitchBack()
	export(g, wcss, result)
}

// dropDevices places the devices and, when asked for, clusters them. The
// elbow curve is returned for export.
func dropDevices(cfg rischarge.Config) (deployment.Geometry, vlib.VectorF, error) {
	g, err := deployment.Drop(cfg.Drop, rand.NewPCG(cfg.Drop.Seed, 0))
	if err != nil {
		return g, nil, err
	}
	clustered := cfg.ServeOrder == rischarge.Clustered || cfg.ServeOrder == rischarge.ClusteredRIS
	if !cfg.Drop.Cluster && !clustered {
		return g, nil, nil
	}

	src := rand.NewPCG(cfg.Drop.Seed, 1)
	points := make([][]float64, g.K())
	for i, loc := range g.Devices {
		points[i] = []float64{loc.X, loc.Y}
	}
	var wcss vlib.VectorF
	if kmax := g.K() - 1; kmax >= 1 {
		if wcss, err = deployment.Elbow(points, kmax, 10, src); err != nil {
			return g, nil, err
		}
	}
	if _, err := deployment.Cluster(&g, cfg.Drop.MaxK, src, log.StandardLogger()); err != nil {
		return g, nil, err
	}
	return g, wcss, nil
}

func printSummary(cfg rischarge.Config, r *rischarge.Result) {
	head := color.New(color.FgCyan, color.Bold)
	head.Printf("%-5s %-5s %10s %10s %10s %12s %12s %12s  %s\n", "slot", "dev", "dPB", "dRIS", "gain", "Pr", "incidental", "t", "status")
	for _, k := range r.Order {
		d := r.Devices[k]
		status := color.GreenString(d.Status.String())
		switch d.Status {
		case rischarge.ChargedByNeighbours:
			status = color.YellowString(d.Status.String())
		case rischarge.Inconsistent:
			status = color.RedString(d.Status.String())
		}
		// beam gain on the full channel, LoS and scattered parts together
		gain := vlib.Db(antenna.AASGain(d.Beam, d.Channel))
		fmt.Printf("%-5d %-5d %9.2fm %9.2fm %8.1fdB %12s %12s %12s  %s\n",
			d.Slot, d.Index, d.DistPB, d.DistRIS, gain,
			humanize.SIWithDigits(d.ReceivedPower, 2, "W"),
			humanize.SIWithDigits(d.Incidental, 2, "J"),
			humanize.SIWithDigits(d.ChargingTime, 2, "s"),
			status)
	}

	total := humanize.SIWithDigits(r.Total, 3, "s")
	if !r.TotalDefined {
		color.Red("Total charging time %s is undefined: devices %v cannot be charged", total, r.Inconsistent())
		for _, err := range r.Errors {
			log.Warn(err)
		}
		return
	}
	color.Green("Total charging time %s for %d devices (E_min=%s, order=%s)",
		total, len(r.Devices), humanize.SIWithDigits(cfg.EMin, 1, "J"), cfg.ServeOrder)
}

type summary struct {
	Order         []int
	ChargingTimes vlib.VectorF
	Total         float64
	TotalDefined  bool
	Devices       []rischarge.Device
	Labels        []int
}

func export(g deployment.Geometry, wcss vlib.VectorF, r *rischarge.Result) {
	matlab := vlib.NewMatlab("charging")
	matlab.Silent = true
	matlab.Json = false

	var x, y, pr, t, order vlib.VectorF
	for _, k := range r.Order {
		order = append(order, float64(k+1))
	}
	for _, d := range r.Devices {
		x = append(x, d.Position.X)
		y = append(y, d.Position.Y)
		pr = append(pr, d.ReceivedPower)
		t = append(t, d.ChargingTime)
	}
	matlab.Export("x", x)
	matlab.Export("y", y)
	matlab.Export("pr", pr)
	matlab.Export("t", t)
	matlab.Export("tseq", r.ChargingTimes)
	matlab.Export("order", order)
	if wcss != nil {
		matlab.Export("wcss", wcss)
	}
	matlab.Command(fmt.Sprintf("PB=[%g %g]; RIS=[%g %g];", g.PB.X, g.PB.Y, g.RIS.X, g.RIS.Y))
	matlab.Command("total=sum(tseq);")
	matlab.Close()

	vlib.SaveStructure(summary{
		Order:         r.Order,
		ChargingTimes: r.ChargingTimes,
		Total:         r.Total,
		TotalDefined:  r.TotalDefined,
		Devices:       r.Devices,
		Labels:        g.Labels,
	}, "result.json", true)
	log.WithField("dir", outdir).Info("results written to charging.m and result.json")
}
