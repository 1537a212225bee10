// Package ingest parses uploaded spreadsheet files into grids: delimited
// text with delimiter and header-row detection, and XLSX workbooks via
// excelize. It also serializes corrected grids back out for download.
package ingest
