// Package render prints finance data as plain terminal tables.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"finance/internal/core"
	"finance/internal/notify"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	titleStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	incomeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	expenseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	noticeStyles = map[notify.Kind]lipgloss.Style{
		notify.KindSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		notify.KindError:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		notify.KindLoading: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		notify.KindInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	}

	noticeIcons = map[notify.Kind]string{
		notify.KindSuccess: "✔",
		notify.KindError:   "✖",
		notify.KindLoading: "…",
		notify.KindInfo:    "•",
	}
)

// table lays out rows in left-aligned columns; columns listed in right are
// right-aligned.
type table struct {
	header []string
	rows   [][]string
	right  map[int]bool
	styles map[[2]int]lipgloss.Style
}

func newTable(header ...string) *table {
	return &table{header: header, right: map[int]bool{}, styles: map[[2]int]lipgloss.Style{}}
}

func (t *table) add(cells ...string) int {
	t.rows = append(t.rows, cells)
	return len(t.rows) - 1
}

func (t *table) style(row, col int, s lipgloss.Style) {
	t.styles[[2]int{row, col}] = s
}

func (t *table) write(w io.Writer) error {
	widths := make([]int, len(t.header))
	for i, h := range t.header {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range t.rows {
		for i, c := range r {
			if i < len(widths) && lipgloss.Width(c) > widths[i] {
				widths[i] = lipgloss.Width(c)
			}
		}
	}

	var b strings.Builder
	line := func(cells []string, rowStyle func(col int, s string) string) {
		parts := make([]string, len(widths))
		for i := range widths {
			c := ""
			if i < len(cells) {
				c = cells[i]
			}
			pos := lipgloss.Left
			if t.right[i] {
				pos = lipgloss.Right
			}
			parts[i] = rowStyle(i, lipgloss.PlaceHorizontal(widths[i], pos, c))
		}
		b.WriteString(strings.TrimRight(strings.Join(parts, "  "), " "))
		b.WriteByte('\n')
	}

	line(t.header, func(_ int, s string) string { return headerStyle.Render(s) })
	for ri, r := range t.rows {
		line(r, func(col int, s string) string {
			if st, ok := t.styles[[2]int{ri, col}]; ok {
				return st.Render(s)
			}
			return s
		})
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func amountStyle(m core.Movement) lipgloss.Style {
	if m.Amount.IsNegative() {
		return expenseStyle
	}
	return incomeStyle
}

func kindLabel(k core.Kind) string {
	switch k {
	case core.KindIncome:
		return "Entrada"
	case core.KindExpense:
		return "Saída"
	}
	return string(k)
}

func categoryLabel(m core.Movement) string {
	if m.CategoryDescription != "" {
		return m.CategoryDescription
	}
	if m.CategoryID == core.UncategorizedID {
		return mutedStyle.Render("sem categoria")
	}
	return "#" + strconv.Itoa(m.CategoryID)
}

func movementsTable(movements []core.Movement, withID bool) *table {
	header := []string{"#", "Data", "Tipo", "Categoria", "Descrição", "Valor"}
	if withID {
		header[0] = "ID"
	}
	t := newTable(header...)
	t.right[5] = true
	for i, m := range movements {
		first := strconv.Itoa(i)
		if withID {
			first = m.ID
		}
		row := t.add(
			first,
			m.Date().Format("02/01/2006"),
			kindLabel(m.Kind),
			categoryLabel(m),
			m.Description,
			core.FormatCurrency(m.Amount),
		)
		t.style(row, 5, amountStyle(m))
	}
	return t
}

// Invoice prints the movements of an invoice followed by its total and
// savings.
func Invoice(w io.Writer, inv core.Invoice) error {
	if len(inv.Movements) == 0 {
		if _, err := fmt.Fprintln(w, mutedStyle.Render("Nenhum movimento encontrado.")); err != nil {
			return err
		}
	} else if err := movementsTable(inv.Movements, true).write(w); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%s %s\n%s %s\n",
		titleStyle.Render("Total:"), core.FormatCurrency(inv.Total),
		titleStyle.Render("Economia:"), core.FormatCurrency(inv.Savings))
	return err
}

// Drafts prints sync drafts with the index Remove expects, followed by the
// total they would add to the next month.
func Drafts(w io.Writer, drafts []core.Movement) error {
	if len(drafts) == 0 {
		_, err := fmt.Fprintln(w, mutedStyle.Render("Nenhum movimento para sincronizar."))
		return err
	}
	if err := movementsTable(drafts, false).write(w); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%s %s\n", titleStyle.Render("Total:"), core.FormatCurrency(core.SumAmounts(drafts)))
	return err
}

func Movement(w io.Writer, m core.Movement) error {
	t := newTable("Campo", "Valor")
	t.add("ID", m.ID)
	t.add("Data", m.Date().Format("02/01/2006"))
	t.add("Tipo", kindLabel(m.Kind))
	t.add("Categoria", categoryLabel(m))
	t.add("Descrição", m.Description)
	row := t.add("Valor", core.FormatCurrency(m.Amount))
	t.style(row, 1, amountStyle(m))
	return t.write(w)
}

func Categories(w io.Writer, categories []core.Category) error {
	t := newTable("ID", "Categoria")
	for _, c := range categories {
		t.add(strconv.Itoa(c.ID), c.Description)
	}
	return t.write(w)
}

func Months(w io.Writer, months []core.Month) error {
	t := newTable("ID", "Mês")
	for _, m := range months {
		t.add(strconv.Itoa(m.ID), m.Name)
	}
	return t.write(w)
}

func Years(w io.Writer, years []core.Year) error {
	t := newTable("ID", "Ano")
	for _, y := range years {
		t.add(strconv.Itoa(y.ID), strconv.Itoa(y.Year))
	}
	return t.write(w)
}

// Notification renders one notification as a single line.
func Notification(n notify.Notification) string {
	style, ok := noticeStyles[n.Kind]
	if !ok {
		style = noticeStyles[notify.KindInfo]
	}
	icon := noticeIcons[n.Kind]
	if icon == "" {
		icon = noticeIcons[notify.KindInfo]
	}

	line := style.Render(icon + " " + n.Title)
	if n.Description != "" {
		line += " " + n.Description
	}
	return line
}
