package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"hanabi-stats/server/stats"
)

var summaryHeader = []string{
	"Username", "Type",
	"W/L(%)", "W(%)", "L(%)", "W(#)", "L(#)",
	"W/L(%, 2p)", "W(%, 2p)", "L(%, 2p)", "W(#, 2p)", "L(#, 2p)",
	"W/L(%, 3p+)", "W(%, 3p+)", "L(%, 3p+)", "W(#, 3p+)", "L(#, 3p+)",
}

func newTSV(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	return cw
}

func flush(cw *csv.Writer) error {
	cw.Flush()
	return cw.Error()
}

func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func tallyCols(t stats.Tally) []string {
	return []string{
		num(t.WinLoss()),
		num(t.WinRate().Percentage),
		num(t.LossRate().Percentage),
		strconv.Itoa(t.Wins),
		strconv.Itoa(t.Losses),
	}
}

// WritePlayerSummary writes one row per player and class, players in
// case-folded order.
func WritePlayerSummary(w io.Writer, recs []stats.PlayerRecord) error {
	recs = append([]stats.PlayerRecord(nil), recs...)
	stats.SortByName(recs, func(i int) string { return recs[i].Name })

	cw := newTSV(w)
	if err := cw.Write(summaryHeader); err != nil {
		return err
	}
	for _, rec := range recs {
		for _, c := range stats.Classes() {
			b := rec.Class(c)
			row := []string{rec.Name, c.String()}
			row = append(row, tallyCols(b.All)...)
			row = append(row, tallyCols(b.TwoPlayer)...)
			row = append(row, tallyCols(b.ThreePlus)...)
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	return flush(cw)
}

// WriteHighestWinRate lists players by overall win rate, highest first.
// Players with fewer than minGames games are left out.
func WriteHighestWinRate(w io.Writer, recs []stats.PlayerRecord, minGames int) error {
	type row struct {
		name  string
		pct   float64
		games int
	}
	var rows []row
	for _, rec := range recs {
		t := rec.Class(stats.Totals).All
		if t.Games() < minGames || t.Games() == 0 {
			continue
		}
		rows = append(rows, row{rec.Name, t.WinRate().Percentage, t.Games()})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].pct != rows[j].pct {
			return rows[i].pct > rows[j].pct
		}
		return rows[i].name < rows[j].name
	})

	cw := newTSV(w)
	if err := cw.Write([]string{"Username", "W(%)", "Total games"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.name, num(r.pct), strconv.Itoa(r.games)}); err != nil {
			return err
		}
	}
	return flush(cw)
}

// WriteRanking writes standings in the order given.
func WriteRanking(w io.Writer, standings []stats.Standing) error {
	return writeStandings(w, []string{"Username", "Rank"}, standings)
}

func WritePartners(w io.Writer, partners []stats.PartnerScore) error {
	cw := newTSV(w)
	if err := cw.Write([]string{"Player name", "W/L(%)", "W(%)", "W(#)", "L(#)", "Total(#)"}); err != nil {
		return err
	}
	for _, p := range partners {
		row := []string{
			p.Partner, num(p.WinLoss), num(p.WinRate),
			strconv.Itoa(p.Wins), strconv.Itoa(p.Losses), strconv.Itoa(p.Games()),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return flush(cw)
}

func WriteStartingPlayer(w io.Writer, rows []stats.StartingRow) error {
	cw := newTSV(w)
	header := []string{"Player", "Ratio", "Starter wins", "Starter games", "Other wins", "Other games"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		row := []string{
			r.Player, num(r.Ratio),
			strconv.Itoa(r.StarterWins), strconv.Itoa(r.StarterGames),
			strconv.Itoa(r.OtherWins), strconv.Itoa(r.OtherGames),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return flush(cw)
}

func WriteActions(w io.Writer, tallies []stats.ActionTally) error {
	cw := newTSV(w)
	header := []string{"Player", "Clues given", "Clues received", "Color clues", "Rank clues", "Plays", "Discards"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, t := range tallies {
		row := []string{
			t.Player,
			strconv.Itoa(t.CluesGiven), strconv.Itoa(t.CluesReceived),
			strconv.Itoa(t.ColorClues), strconv.Itoa(t.RankClues),
			strconv.Itoa(t.Plays), strconv.Itoa(t.Discards),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return flush(cw)
}

// WritePortrait lists the words of one player's notes, most used first.
func WritePortrait(w io.Writer, p stats.Portrait) error {
	return writeStandings(w, []string{"Word", "Count"}, p.Top())
}

func WriteTalkative(w io.Writer, standings []stats.Standing) error {
	return writeStandings(w, []string{"Player", "Words"}, standings)
}

// WriteVocabulary writes the overlap matrix with one column per player.
// Cell (i, j) is the share of row player i's words that player j also uses.
func WriteVocabulary(w io.Writer, players []string, m [][]float64) error {
	cw := newTSV(w)
	if err := cw.Write(append([]string{"Player"}, players...)); err != nil {
		return err
	}
	for i, p := range players {
		row := []string{p}
		for _, v := range m[i] {
			row = append(row, num(v))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return flush(cw)
}

func writeStandings(w io.Writer, header []string, standings []stats.Standing) error {
	cw := newTSV(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, s := range standings {
		if err := cw.Write([]string{s.Name, strconv.Itoa(s.Value)}); err != nil {
			return err
		}
	}
	return flush(cw)
}

// WriteFile creates dir/name.tsv and fills it with write.
func WriteFile(dir, name string, write func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name+".tsv")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := write(f); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, f.Close()
}
