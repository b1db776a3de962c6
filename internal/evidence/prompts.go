package evidence

// Extraction prompts are observation-first: the model must lock the axis
// scale before reporting any coordinate, and must prefer "unclear" over a
// guess. Asymptotes require visible curve-approach behavior; axis lines
// alone never count.

const ExtractionPrompt = `You are reading a mathematical graph image. Do NOT solve anything.
First lock the axis scale (x_tick, y_tick) by reading the tick labels. Every coordinate you report must use that scale.
Marker semantics are strict:
- filled/closed = endpoint included
- open = endpoint excluded
- arrow = curve continues without bound
If a value cannot be read with confidence, write "unclear". If a field does not apply, write "none".
Only report an asymptote when the curve visibly approaches a line; never infer one from an axis or grid line.
If the image does not contain a graph, respond with exactly:
INVALID_GRAPH
Otherwise respond with exactly one block in this format and nothing else:
GRAPH_EVIDENCE:
  LEFT_ENDPOINT: x=<v>, y=<v>, marker=<open|closed|arrow|unclear>
  RIGHT_ENDPOINT: x=<v>, y=<v>, marker=<open|closed|arrow|unclear>
  ASYMPTOTES: <none or list>
  DISCONTINUITIES: <none or list>
  INTERCEPTS: <none or list of (x=<v>, y=<v>)>
  KEY_POINTS: <none or list of (x=<v>, y=<v>)>
  SCALE: x_tick=<v>, y_tick=<v>
  CONFIDENCE: <0..1>`

const DarkRecoveryPrompt = `This graph image is dark or low-contrast, so coordinates are easy to misread.
Pick the single most important ambiguous key point on the curve and report three independent coordinate readings of it.
Re-derive each reading from the axis ticks separately; do not copy one reading three times.
Respond with exactly one line:
KEY_POINT_CANDIDATES: (x=<v>, y=<v>); (x=<v>, y=<v>); (x=<v>, y=<v>)`

const DetectPrompt = `Does this image contain a plotted mathematical graph (a curve or line drawn on coordinate axes)?
Answer with exactly one word: YES or NO.`
