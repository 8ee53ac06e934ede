// Package chart describes charts as plain data. Figures serialize to the
// {data, layout} JSON that Plotly renders in the browser; nothing here draws.
package chart
