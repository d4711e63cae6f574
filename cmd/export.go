package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ademuri/outtamusic/internal/analysis"
)

// groupExport is the YAML document written by export. Indices in the
// snapshot refer to the id lists and the genre dictionary.
type groupExport struct {
	Group     string             `yaml:"group"`
	FromYear  int                `yaml:"from_year"`
	ToYear    int                `yaml:"to_year"`
	Members   []string           `yaml:"members"`
	Genres    []string           `yaml:"genres"`
	TrackIDs  []string           `yaml:"track_ids"`
	AlbumIDs  []string           `yaml:"album_ids"`
	ArtistIDs []string           `yaml:"artist_ids"`
	Analysis  *analysis.Snapshot `yaml:"analysis"`
}

var exportCmd = &cobra.Command{
	Use:   "export <group>",
	Short: "Writes a group's latest analysis as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		g, err := s.GetGroup(args[0])
		if err != nil {
			return err
		}
		snap, recs, err := loadAnalysis(s, args[0])
		if err != nil {
			return err
		}

		doc := groupExport{
			Group:     g.Name,
			FromYear:  g.FromYear,
			ToYear:    g.ToYear,
			Members:   g.Members,
			Genres:    recs.Genres,
			TrackIDs:  recs.Tracks.IDs,
			AlbumIDs:  recs.Albums.IDs,
			ArtistIDs: recs.Artists.IDs,
			Analysis:  snap,
		}

		encoder := yaml.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent(2)
		if err := encoder.Encode(doc); err != nil {
			return fmt.Errorf("encoding export: %w", err)
		}
		return encoder.Close()
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
