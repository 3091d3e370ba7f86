// feedsim sends synthetic oscillator amplitudes to a running go-sonify.
// A few gaussian bumps wander slowly across the bank so peaks drift the way
// a real oscillator model's do.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"go-sonify/config"
	"go-sonify/feed"
	"go-sonify/sequencer"
)

type bump struct {
	center float64
	width  float64
	height float64
}

func main() {
	defaults := config.DefaultConfig()
	url := flag.String("url", "ws://"+defaults.Feed.Listen+defaults.Feed.Path, "feed server")
	n := flag.Int("n", defaults.Model.Oscillators, "oscillators")
	bumps := flag.Int("bumps", 3, "number of amplitude bumps")
	rate := flag.Float64("rate", 4, "updates per second")
	drift := flag.Float64("drift", 1.5, "max bump movement per update, in oscillators")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
	serverPeaks := flag.Bool("server-peaks", false, "omit peaks and let the server derive them")
	action := flag.String("action", "", "send one action (RESET, LOCK, NEW_TONES, NEW_GRFNN) and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	client, err := feed.Dial(dialCtx, *url)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	if *action != "" {
		a := sequencer.ParseAction(*action)
		if a == sequencer.ActionNone {
			fmt.Fprintf(os.Stderr, "unknown action %q\n", *action)
			os.Exit(1)
		}
		if err := client.SendAction(a); err != nil {
			fmt.Fprintf(os.Stderr, "send: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Print server replies (errors, relayed frames from others)
	go func() {
		for {
			msg, err := client.Read()
			if err != nil {
				return
			}
			if msg.Type == feed.KeyError {
				text, _ := msg.DecodeString()
				fmt.Fprintf(os.Stderr, "server: %s\n", text)
			}
		}
	}()

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	bs := make([]bump, *bumps)
	for i := range bs {
		bs[i] = bump{
			center: rng.Float64() * float64(*n),
			width:  2 + rng.Float64()*float64(*n)/40,
			height: 0.3 + 0.7*rng.Float64(),
		}
	}

	ticker := time.NewTicker(time.Duration(float64(time.Second) / *rate))
	defer ticker.Stop()

	fmt.Printf("sending %d oscillators at %.1f/s to %s\n", *n, *rate, *url)
	sent := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\nsent %d updates\n", sent)
			return
		case <-ticker.C:
		}

		for i := range bs {
			bs[i].center += (rng.Float64()*2 - 1) * *drift
			bs[i].center = math.Max(0, math.Min(float64(*n-1), bs[i].center))
		}
		amps := feed.Normalize(render(bs, *n, rng))

		var peaks []int
		if !*serverPeaks {
			peaks = feed.DerivePeaks(amps, defaults.Feed.SmoothWindow, min(defaults.Feed.PeakOrder, *n/(2*(*bumps)+1)))
			if peaks == nil {
				peaks = []int{}
			}
		}
		if err := client.SendData(amps, peaks); err != nil {
			fmt.Fprintf(os.Stderr, "send: %v\n", err)
			return
		}
		sent++
	}
}

// render sums the bumps over n oscillators with a little noise
func render(bs []bump, n int, rng *rand.Rand) []float64 {
	z := make([]float64, n)
	for i := range z {
		for _, b := range bs {
			d := (float64(i) - b.center) / b.width
			z[i] += b.height * math.Exp(-d*d/2)
		}
		z[i] += 0.02 * rng.Float64()
	}
	return z
}
