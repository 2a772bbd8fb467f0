// Package preview renders height fields as heat maps for quick inspection:
// PNG images through gonum/plot and self-contained HTML pages through
// go-echarts. Large fields are decimated before rendering.
package preview
