package export

import (
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/wildfire-lab/firetour/internal/fire"
	"github.com/wildfire-lab/firetour/internal/tourism"
)

// Workbook writes an XLSX workbook with a "fires" sheet and a "tourism"
// sheet. A nil slice leaves its sheet out.
func Workbook(w io.Writer, fires []fire.Detection, pois []tourism.POI) error {
	file := xlsx.NewFile()

	if fires != nil {
		sheet, err := file.AddSheet("fires")
		if err != nil {
			return eris.Wrap(err, "export: add fires sheet")
		}
		addHeader(sheet, fireHeader)
		for _, d := range fires {
			row := sheet.AddRow()
			row.AddCell().SetFloat(d.Lat)
			row.AddCell().SetFloat(d.Lon)
			row.AddCell().SetInt(d.Value)
			row.AddCell().SetString(d.Date.Format(time.DateOnly))
		}
	}

	if pois != nil {
		sheet, err := file.AddSheet("tourism")
		if err != nil {
			return eris.Wrap(err, "export: add tourism sheet")
		}
		addHeader(sheet, poiHeader)
		for _, p := range pois {
			row := sheet.AddRow()
			row.AddCell().SetFloat(p.Lat)
			row.AddCell().SetFloat(p.Lon)
			row.AddCell().SetString(p.Type)
			row.AddCell().SetString(p.Kind)
			row.AddCell().SetString(p.Name)
		}
	}

	if len(file.Sheets) == 0 {
		return eris.New("export: workbook has no sheets")
	}
	if err := file.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

func addHeader(sheet *xlsx.Sheet, cols []string) {
	row := sheet.AddRow()
	for _, c := range cols {
		row.AddCell().SetString(c)
	}
}
