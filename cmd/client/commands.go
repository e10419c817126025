package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"

	"github.com/atinyakov/GlycoKeeper/internal/chart"
	"github.com/atinyakov/GlycoKeeper/internal/client/api"
	"github.com/atinyakov/GlycoKeeper/internal/client/geocode"
	"github.com/atinyakov/GlycoKeeper/internal/client/service"
	"github.com/atinyakov/GlycoKeeper/internal/models"
)

const usage = `Commands:
  login <email> <password>
  register <email> <password> [first name] [last name]
  logout | whoami
  add <mg/dL> [context] [notes...]      record a reading taken now
  import <file.json>                    upload a CGM export ([{"value":..,"measured_at":..}])
  list [day|week|month]
  chart [day|week|month]
  stats [day|week|month]
  latest
  dashboard                             show every module
  dashboard push <module> <json>        store a module snapshot
  dashboard clear <module>
  profile                               show profile
  profile set key=value...              first_name, last_name, phone, diabetes_type, target_min, target_max
  contacts                              list emergency contacts
  contacts add <name> <phone> [relationship]
  contacts delete <id>
  doctor                                show doctor
  doctor set key=value...               name, specialty, phone, email, address (address is geocoded)
  geocode <query>
  help | exit`

// errUsage marks a malformed command line.
var errUsage = errors.New("usage")

// app holds the client services the commands dispatch to.
type app struct {
	api       *api.Client
	glycemia  *service.GlycemiaService
	dashboard *service.DashboardService
	users     *service.UsersService
	geo       *geocode.Client
	out       io.Writer
	now       func() time.Time
}

// run executes one command. Unknown commands and bad arguments return an error wrapping errUsage.
func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		fmt.Fprintln(a.out, usage)
		return nil
	case "login":
		return a.login(ctx, args)
	case "register":
		return a.register(ctx, args)
	case "logout":
		if err := a.api.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Logged out")
		return nil
	case "whoami":
		u, err := a.api.CurrentUser()
		if err != nil {
			return err
		}
		if u == nil {
			fmt.Fprintln(a.out, "Not logged in")
			return nil
		}
		fmt.Fprintf(a.out, "%s %s <%s>\n", u.FirstName, u.LastName, u.Email)
		return nil
	case "add":
		return a.add(ctx, args)
	case "import":
		return a.importCGM(ctx, args)
	case "list":
		return a.list(ctx, args)
	case "chart":
		return a.chart(ctx, args)
	case "stats":
		return a.stats(ctx, args)
	case "latest":
		return a.latest(ctx)
	case "dashboard":
		return a.dashboardCmd(ctx, args)
	case "profile":
		return a.profile(ctx, args)
	case "contacts":
		return a.contacts(ctx, args)
	case "doctor":
		return a.doctor(ctx, args)
	case "geocode":
		return a.geocode(ctx, args)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: login <email> <password>", errUsage)
	}
	u, err := a.api.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Welcome %s\n", displayName(u))
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 4 {
		return fmt.Errorf("%w: register <email> <password> [first name] [last name]", errUsage)
	}
	req := api.RegisterRequest{Email: args[0], Password: args[1]}
	if len(args) > 2 {
		req.FirstName = args[2]
	}
	if len(args) > 3 {
		req.LastName = args[3]
	}
	u, err := a.api.Register(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Account created, welcome %s\n", displayName(u))
	return nil
}

func displayName(u *models.User) string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Email
}

func (a *app) add(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: add <mg/dL> [context] [notes...]", errUsage)
	}
	value, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: value must be an integer in mg/dL", errUsage)
	}
	e := models.NewEntry{Value: value, MeasuredAt: a.now()}
	if len(args) > 1 {
		e.Context = args[1]
	}
	if len(args) > 2 {
		e.Notes = strings.Join(args[2:], " ")
	}
	created, err := a.glycemia.Create(ctx, e)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Recorded %d mg/dL at %s\n", created.Value, created.MeasuredAt.Local().Format("15:04"))
	return nil
}

func (a *app) importCGM(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: import <file.json>", errUsage)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var entries []models.NewEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}
	n, err := a.glycemia.ImportCGM(ctx, entries)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Imported %d readings\n", n)
	return nil
}

// periodArg parses the optional period argument, defaulting to day.
func periodArg(args []string) (chart.Period, error) {
	if len(args) == 0 {
		return chart.Day, nil
	}
	p, err := chart.ParsePeriod(args[0])
	if err != nil {
		return "", fmt.Errorf("%w: %w", errUsage, err)
	}
	return p, nil
}

func (a *app) list(ctx context.Context, args []string) error {
	period, err := periodArg(args)
	if err != nil {
		return err
	}
	entries, err := a.glycemia.List(ctx, period)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No readings")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tMG/DL\tSOURCE\tCONTEXT\tNOTES")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", e.MeasuredAt.Local().Format("02/01 15:04"), e.Value, e.Source, e.Context, e.Notes)
	}
	return tw.Flush()
}

func (a *app) chart(ctx context.Context, args []string) error {
	period, err := periodArg(args)
	if err != nil {
		return err
	}
	data, err := a.glycemia.Chart(ctx, period)
	renderChart(a.out, data)
	return err
}

// renderChart draws one horizontal bar per point, scaled to the largest value.
func renderChart(w io.Writer, d chart.Data) {
	const width = 40
	peak := 0
	for _, v := range d.Values {
		peak = max(peak, v)
	}
	for i, v := range d.Values {
		bar := 0
		if peak > 0 {
			bar = v * width / peak
		}
		fmt.Fprintf(w, "%6s | %-*s %d\n", d.Labels[i], width, strings.Repeat("#", bar), v)
	}
}

func (a *app) stats(ctx context.Context, args []string) error {
	period, err := periodArg(args)
	if err != nil {
		return err
	}
	st, err := a.glycemia.Stats(ctx, period)
	if err != nil {
		return err
	}
	printStats(a.out, st)
	return nil
}

func printStats(w io.Writer, st *models.GlycemiaStats) {
	if st.Count == 0 {
		fmt.Fprintf(w, "No readings over the last %s\n", st.Period)
		return
	}
	fmt.Fprintf(w, "Readings: %d  Average: %.0f mg/dL  Min: %d  Max: %d\n", st.Count, st.Average, st.Min, st.Max)
	fmt.Fprintf(w, "Time in range (%d-%d): %.0f%%  Below: %d  Above: %d\n",
		st.TargetMin, st.TargetMax, st.TimeInRange*100, st.Below, st.Above)
}

func (a *app) latest(ctx context.Context) error {
	e, err := a.glycemia.Latest(ctx)
	if err != nil {
		return err
	}
	if e == nil {
		fmt.Fprintln(a.out, "No readings yet")
		return nil
	}
	fmt.Fprintf(a.out, "%d mg/dL at %s (%s)\n", e.Value, e.MeasuredAt.Local().Format("02/01 15:04"), e.Source)
	return nil
}

func (a *app) dashboardCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.printSummary(a.dashboard.Summary(ctx))
		return nil
	}
	switch {
	case args[0] == "push" && len(args) >= 3:
		raw := strings.Join(args[2:], " ")
		if !json.Valid([]byte(raw)) {
			return fmt.Errorf("%w: snapshot data must be JSON", errUsage)
		}
		snap, err := a.dashboard.Push(ctx, models.Module(args[1]), json.RawMessage(raw))
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Stored %s\n", snap.Module)
		return nil
	case args[0] == "clear" && len(args) == 2:
		if err := a.dashboard.Clear(ctx, models.Module(args[1])); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Cleared %s\n", args[1])
		return nil
	default:
		return fmt.Errorf("%w: dashboard [push <module> <json> | clear <module>]", errUsage)
	}
}

func (a *app) printSummary(sum service.Summary) {
	if g, err := sum.Glucose(); err == nil {
		if g.Latest != nil {
			fmt.Fprintf(a.out, "glucose: %d mg/dL at %s, ", g.Latest.Value, g.Latest.MeasuredAt.Local().Format("15:04"))
		} else {
			fmt.Fprint(a.out, "glucose: no reading, ")
		}
		fmt.Fprintf(a.out, "24h average %.0f, in range %.0f%%\n", g.Stats.Average, g.Stats.TimeInRange*100)
	} else {
		fmt.Fprintf(a.out, "glucose: unavailable (%s)\n", api.Message(err))
	}

	for _, m := range models.DashboardModules {
		if m == models.ModuleGlucose {
			continue
		}
		if snap, ok := sum.Modules[m]; ok {
			fmt.Fprintf(a.out, "%s: %s\n", m, snap.Data)
			continue
		}
		err := sum.Errors[m]
		if api.IsStatus(err, 404) {
			fmt.Fprintf(a.out, "%s: nothing yet\n", m)
		} else {
			fmt.Fprintf(a.out, "%s: unavailable (%s)\n", m, api.Message(err))
		}
	}
}

// parseAssignments turns key=value arguments into a map.
func parseAssignments(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: expected key=value, got %q", errUsage, arg)
		}
		out[k] = v
	}
	return out, nil
}

func (a *app) profile(ctx context.Context, args []string) error {
	var kv map[string]string
	if len(args) > 0 {
		if args[0] != "set" || len(args) < 2 {
			return fmt.Errorf("%w: profile set key=value...", errUsage)
		}
		var err error
		if kv, err = parseAssignments(args[1:]); err != nil {
			return err
		}
		if err := applyProfile(&models.Profile{}, kv); err != nil {
			return err
		}
	}

	p, err := a.users.Profile(ctx)
	if err != nil {
		return err
	}
	if kv != nil {
		_ = applyProfile(p, kv)
		if p, err = a.users.UpdateProfile(ctx, *p); err != nil {
			return err
		}
	}
	fmt.Fprintf(a.out, "Name: %s %s\nPhone: %s\nDiabetes: %s\nTarget: %d-%d mg/dL\n",
		p.FirstName, p.LastName, p.Phone, p.DiabetesType, p.TargetMin, p.TargetMax)
	return nil
}

func applyProfile(p *models.Profile, kv map[string]string) error {
	for k, v := range kv {
		switch k {
		case "first_name":
			p.FirstName = v
		case "last_name":
			p.LastName = v
		case "phone":
			p.Phone = v
		case "diabetes_type":
			p.DiabetesType = v
		case "target_min", "target_max":
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s must be an integer", errUsage, k)
			}
			if k == "target_min" {
				p.TargetMin = n
			} else {
				p.TargetMax = n
			}
		default:
			return fmt.Errorf("%w: unknown profile field %q", errUsage, k)
		}
	}
	return nil
}

func (a *app) contacts(ctx context.Context, args []string) error {
	switch {
	case len(args) == 0:
		contacts, err := a.users.Contacts(ctx)
		if err != nil {
			return err
		}
		if len(contacts) == 0 {
			fmt.Fprintln(a.out, "No emergency contacts")
			return nil
		}
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tPHONE\tRELATIONSHIP")
		for _, c := range contacts {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Phone, c.Relationship)
		}
		return tw.Flush()
	case args[0] == "add" && (len(args) == 3 || len(args) == 4):
		c := models.EmergencyContact{Name: args[1], Phone: args[2]}
		if len(args) == 4 {
			c.Relationship = args[3]
		}
		created, err := a.users.AddContact(ctx, c)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Added %s (%s)\n", created.Name, created.ID)
		return nil
	case args[0] == "delete" && len(args) == 2:
		if err := a.users.DeleteContact(ctx, args[1]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Contact deleted")
		return nil
	default:
		return fmt.Errorf("%w: contacts [add <name> <phone> [relationship] | delete <id>]", errUsage)
	}
}

func (a *app) doctor(ctx context.Context, args []string) error {
	if len(args) == 0 {
		d, err := a.users.Doctor(ctx)
		if err != nil {
			return err
		}
		if d == nil {
			fmt.Fprintln(a.out, "No doctor set")
			return nil
		}
		printDoctor(a.out, d)
		return nil
	}
	if args[0] != "set" || len(args) < 2 {
		return fmt.Errorf("%w: doctor set key=value...", errUsage)
	}
	kv, err := parseAssignments(args[1:])
	if err != nil {
		return err
	}

	d, err := a.users.Doctor(ctx)
	if err != nil {
		return err
	}
	if d == nil {
		d = &models.Doctor{}
	}
	for k, v := range kv {
		switch k {
		case "name":
			d.Name = v
		case "specialty":
			d.Specialty = v
		case "phone":
			d.Phone = v
		case "email":
			d.Email = v
		case "address":
			d.Address = v
		default:
			return fmt.Errorf("%w: unknown doctor field %q", errUsage, k)
		}
	}
	if addr, ok := kv["address"]; ok && addr != "" {
		d.Latitude, d.Longitude = 0, 0
		places, err := a.geo.Search(ctx, addr, 1)
		switch {
		case err == nil && len(places) > 0:
			d.Address = places[0].DisplayName
			d.Latitude, d.Longitude = places[0].Latitude, places[0].Longitude
		case err != nil && !errors.Is(err, geocode.ErrNotFound):
			fmt.Fprintf(a.out, "Address lookup failed, saving it as typed: %v\n", err)
		}
	}

	updated, err := a.users.UpdateDoctor(ctx, *d)
	if err != nil {
		return err
	}
	printDoctor(a.out, updated)
	return nil
}

func printDoctor(w io.Writer, d *models.Doctor) {
	fmt.Fprintf(w, "%s", d.Name)
	if d.Specialty != "" {
		fmt.Fprintf(w, " (%s)", d.Specialty)
	}
	fmt.Fprintln(w)
	for _, line := range [][2]string{{"Phone", d.Phone}, {"Email", d.Email}, {"Address", d.Address}} {
		if line[1] != "" {
			fmt.Fprintf(w, "%s: %s\n", line[0], line[1])
		}
	}
	if d.Latitude != 0 || d.Longitude != 0 {
		fmt.Fprintf(w, "Location: %.5f, %.5f\n", d.Latitude, d.Longitude)
	}
}

func (a *app) geocode(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: geocode <query>", errUsage)
	}
	places, err := a.geo.Search(ctx, strings.Join(args, " "), 5)
	if errors.Is(err, geocode.ErrNotFound) {
		fmt.Fprintln(a.out, "No match")
		return nil
	}
	if err != nil {
		return err
	}
	if len(places) == 0 {
		fmt.Fprintln(a.out, "No match")
		return nil
	}
	for _, p := range places {
		fmt.Fprintf(a.out, "%s (%.5f, %.5f)\n", p.DisplayName, p.Latitude, p.Longitude)
	}
	return nil
}

// describeError renders err for the terminal.
func describeError(err error) string {
	switch {
	case errors.Is(err, api.ErrSessionExpired):
		return "Your session has expired. Please log in again with: login <email> <password>"
	case errors.Is(err, errUsage):
		return err.Error()
	case errors.As(err, new(*api.APIError)):
		return api.Message(err)
	default:
		return err.Error()
	}
}
