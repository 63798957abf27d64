package email

import (
	"fmt"
	"time"
)

// expiryFormat renders expiry timestamps in emails, always in UTC.
const expiryFormat = "15:04 MST, Jan 2"

// RequestSubmittedHTML returns the HTML body for a new-request notice
// sent to the approver.
func RequestSubmittedHTML(appName, subjectID, resourceURL string, minutes int) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="margin:0;background:#eef1f4;font-family:Helvetica,Arial,sans-serif;">
  <div style="max-width:520px;margin:32px auto;background:#fff;border-left:4px solid #3b5bdb;padding:28px 32px;">
    <h2 style="margin:0 0 12px;font-size:20px;color:#212529;">New access request</h2>
    <p style="margin:0 0 12px;font-size:14px;color:#495057;line-height:1.6;">
      <strong>%s</strong> is asking for <strong>%d minutes</strong> of access to:
    </p>
    <pre style="margin:0 0 16px;padding:10px 14px;background:#f1f3f5;font-size:13px;color:#212529;white-space:pre-wrap;word-break:break-all;">%s</pre>
    <p style="margin:0;font-size:13px;color:#868e96;line-height:1.5;">
      The request stays pending until you approve or deny it from the %s admin panel.
    </p>
  </div>
  <p style="max-width:520px;margin:0 auto 32px;font-size:11px;color:#adb5bd;text-align:center;">%s &middot; automated message, do not reply</p>
</body>
</html>`, subjectID, minutes, resourceURL, appName, appName)
}

// RequestSubmittedText returns the plain-text body for a new-request notice.
func RequestSubmittedText(appName, subjectID, resourceURL string, minutes int) string {
	return fmt.Sprintf(`New access request

%s is asking for %d minutes of access to:

  %s

The request stays pending until you approve or deny it from the %s admin panel.

- %s`, subjectID, minutes, resourceURL, appName, appName)
}

// RequestApprovedHTML returns the HTML body for an approval notice sent
// to the requesting subject.
func RequestApprovedHTML(appName, resourceURL string, expiresAt time.Time) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="margin:0;background:#eef1f4;font-family:Helvetica,Arial,sans-serif;">
  <div style="max-width:520px;margin:32px auto;background:#fff;border-left:4px solid #2f9e44;padding:28px 32px;">
    <h2 style="margin:0 0 12px;font-size:20px;color:#2b8a3e;">Access approved</h2>
    <p style="margin:0 0 12px;font-size:14px;color:#495057;line-height:1.6;">
      Your access request was approved. You can now reach:
    </p>
    <pre style="margin:0 0 16px;padding:10px 14px;background:#ebfbee;font-size:13px;color:#212529;white-space:pre-wrap;word-break:break-all;">%s</pre>
    <p style="margin:0;font-size:13px;color:#868e96;line-height:1.5;">
      Access ends at <strong>%s</strong>. Submit a new request if you need more time.
    </p>
  </div>
  <p style="max-width:520px;margin:0 auto 32px;font-size:11px;color:#adb5bd;text-align:center;">%s &middot; automated message, do not reply</p>
</body>
</html>`, resourceURL, expiresAt.UTC().Format(expiryFormat), appName)
}

// RequestApprovedText returns the plain-text body for an approval notice.
func RequestApprovedText(appName, resourceURL string, expiresAt time.Time) string {
	return fmt.Sprintf(`Access approved

Your access request was approved. You can now reach:

  %s

Access ends at %s. Submit a new request if you need more time.

- %s`, resourceURL, expiresAt.UTC().Format(expiryFormat), appName)
}

// RequestDeniedText returns the plain-text body for a denial notice.
// Denials are low-volume and get a text-only email.
func RequestDeniedText(appName, resourceURL string) string {
	return fmt.Sprintf(`Access denied

Your access request for the following resource was denied:

  %s

Contact your administrator if you believe this is a mistake.

- %s`, resourceURL, appName)
}
