package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/99minutos/user-directory/pkg/client"
)

// OutputFormatter renders command results as text tables or JSON.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

func (f *OutputFormatter) JSON(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Users prints one row per user.
func (f *OutputFormatter) Users(users []client.User) error {
	if f.Format == "json" {
		return f.JSON(users)
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tZIP\tCITY\tTZ")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.ZipCode, u.City, u.TimezoneOffsetLabel)
	}
	return tw.Flush()
}

// User prints a single record, preceded by msg in text mode.
func (f *OutputFormatter) User(msg string, u *client.User) error {
	if f.Format == "json" {
		return f.JSON(u)
	}
	if msg != "" {
		fmt.Fprintln(f.Writer, msg)
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", u.ID)
	fmt.Fprintf(tw, "name:\t%s\n", u.Name)
	fmt.Fprintf(tw, "zip code:\t%s\n", u.ZipCode)
	if u.Latitude != nil && u.Longitude != nil {
		fmt.Fprintf(tw, "coordinates:\t%g, %g\n", *u.Latitude, *u.Longitude)
	}
	if u.City != "" {
		fmt.Fprintf(tw, "city:\t%s, %s\n", u.City, u.Country)
	}
	if u.TimezoneOffsetLabel != "" {
		fmt.Fprintf(tw, "timezone:\t%s\n", u.TimezoneOffsetLabel)
	}
	if u.WeatherDescription != "" {
		fmt.Fprintf(tw, "weather:\t%s\n", u.WeatherDescription)
	}
	return tw.Flush()
}
